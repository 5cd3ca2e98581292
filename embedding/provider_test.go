package embedding

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_DefaultsToHash(t *testing.T) {
	embedder, err := NewProvider(context.Background(), ProviderConfig{})
	require.NoError(t, err)
	_, ok := embedder.(*HashEmbedder)
	assert.True(t, ok, "expected *HashEmbedder, got %T", embedder)
}

func TestNewProvider_TEI(t *testing.T) {
	srv := teiServer(t, func(inputs []string) (int, any) {
		return http.StatusOK, matrixFor(inputs)
	})
	defer srv.Close()

	embedder, err := NewProvider(context.Background(), ProviderConfig{
		Provider: ProviderTEI,
		URL:      srv.URL,
	})
	require.NoError(t, err)
	_, ok := embedder.(*TEIEmbedder)
	assert.True(t, ok, "expected *TEIEmbedder, got %T", embedder)
}

func TestNewProvider_FallsBackWhenProbeFails(t *testing.T) {
	// Server that is already closed: connection refused
	srv := teiServer(t, func(inputs []string) (int, any) {
		return http.StatusOK, matrixFor(inputs)
	})
	url := srv.URL
	srv.Close()

	embedder, err := NewProvider(context.Background(), ProviderConfig{
		Provider: ProviderTEI,
		URL:      url,
	})
	require.NoError(t, err)
	_, ok := embedder.(*HashEmbedder)
	assert.True(t, ok, "expected hash fallback, got %T", embedder)
}

func TestNewProvider_FallsBackOnBadConstruction(t *testing.T) {
	embedder, err := NewProvider(context.Background(), ProviderConfig{
		Provider: ProviderTEI,
		// no URL: construction fails, provider degrades
	})
	require.NoError(t, err)
	_, ok := embedder.(*HashEmbedder)
	assert.True(t, ok, "expected hash fallback, got %T", embedder)
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{Provider: "quantum"})
	assert.Error(t, err)
}
