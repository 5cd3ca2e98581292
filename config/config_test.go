package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, "subtitles", cfg.Collection)
	assert.Equal(t, 384, cfg.VectorDim)
	assert.Equal(t, "Cosine", cfg.Distance)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, 2, cfg.Ranking.ShortTextChars)
	assert.Equal(t, 4, cfg.Ranking.MediumTextChars)
	assert.Equal(t, 0.35, cfg.Ranking.ShortPenalty)
	assert.Equal(t, 0.7, cfg.Ranking.MediumPenalty)
	assert.Equal(t, 3, cfg.Ranking.MinTokens)
	assert.Equal(t, 50, cfg.Ranking.OverfetchFloor)
	assert.Equal(t, 3, cfg.Random.MinWords)

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend: direct
collection: movie_lines
vector_dim: 768
embedding:
  provider: tei
  url: http://tei:8080
  format: e5
  batch_size: 16
vectordb:
  url: http://qdrant:6333
  timeout: 10s
ranking:
  min_tokens: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendDirect, cfg.Backend)
	assert.Equal(t, "movie_lines", cfg.Collection)
	assert.Equal(t, 768, cfg.VectorDim)
	assert.Equal(t, "tei", cfg.Embedding.Provider)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.VectorDB.Timeout)
	assert.Equal(t, 4, cfg.Ranking.MinTokens)
	// Untouched fields keep defaults
	assert.Equal(t, 0.35, cfg.Ranking.ShortPenalty)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Backend)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SEARCH_BACKEND", "direct")
	t.Setenv("TEI_URL", "http://tei.internal:8080")
	t.Setenv("TEI_BATCH", "8")
	t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	t.Setenv("QDRANT_COLLECTION", "lines_v2")
	t.Setenv("VECTOR_DIM", "1024")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendDirect, cfg.Backend)
	assert.Equal(t, "tei", cfg.Embedding.Provider, "TEI_URL promotes the tei provider")
	assert.Equal(t, "http://tei.internal:8080", cfg.Embedding.URL)
	assert.Equal(t, 8, cfg.Embedding.BatchSize)
	assert.Equal(t, "http://qdrant.internal:6333", cfg.VectorDB.URL)
	assert.Equal(t, "lines_v2", cfg.Collection)
	assert.Equal(t, 1024, cfg.VectorDim)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid local",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "hybrid" },
			wantErr: true,
		},
		{
			name:    "direct without vectordb url",
			mutate:  func(c *Config) { c.Backend = BackendDirect },
			wantErr: true,
		},
		{
			name: "direct with vectordb url",
			mutate: func(c *Config) {
				c.Backend = BackendDirect
				c.VectorDB.URL = "http://qdrant:6333"
			},
			wantErr: false,
		},
		{
			name:    "delegated without remote url",
			mutate:  func(c *Config) { c.Backend = BackendDelegated },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "onnx" },
			wantErr: true,
		},
		{
			name:    "tei provider without url",
			mutate:  func(c *Config) { c.Embedding.Provider = "tei" },
			wantErr: true,
		},
		{
			name:    "penalty above one",
			mutate:  func(c *Config) { c.Ranking.ShortPenalty = 1.5 },
			wantErr: true,
		},
		{
			name: "short threshold above medium",
			mutate: func(c *Config) {
				c.Ranking.ShortTextChars = 10
				c.Ranking.MediumTextChars = 4
			},
			wantErr: true,
		},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Embedding.Format = "bge" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
