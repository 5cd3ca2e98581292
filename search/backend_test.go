package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunhengzhe/easylish/config"
)

func TestNewBackendLocalDefault(t *testing.T) {
	cfg := config.Default()

	backend, err := NewBackend(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "local", backend.Source())
	assert.Equal(t, ScoreRange{Min: -1, Max: 1}, backend.ScoreRange())
}

func TestNewBackendDirect(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendDirect
	cfg.Embedding.URL = "http://127.0.0.1:1"
	cfg.VectorDB.URL = "http://127.0.0.1:1"

	backend, err := NewBackend(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "direct", backend.Source())
	assert.Equal(t, ScoreRange{Min: 0, Max: 1}, backend.ScoreRange())
}

func TestNewBackendDelegated(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendDelegated
	cfg.Remote.URL = "http://127.0.0.1:1"

	backend, err := NewBackend(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "delegated", backend.Source())
}

func TestNewBackendUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "quantum"

	_, err := NewBackend(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}
