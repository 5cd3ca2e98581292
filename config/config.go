// Package config loads and validates the retrieval engine configuration
// from YAML, with environment-variable overrides for deployment knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sunhengzhe/easylish/errors"
)

// Backend selection constants.
const (
	BackendLocal     = "local"     // embed + index in process
	BackendDirect    = "direct"    // inference service + vector database
	BackendDelegated = "delegated" // external retrieval service owns everything
)

// Config is the complete engine configuration.
type Config struct {
	// Backend is local, direct, or delegated.
	Backend string `json:"backend" yaml:"backend"`

	// Collection is the vector-database collection name.
	Collection string `json:"collection" yaml:"collection"`

	// VectorDim is the embedding width (default: 384).
	VectorDim int `json:"vector_dim" yaml:"vector_dim"`

	// Distance is the vector-database similarity metric (default: Cosine).
	Distance string `json:"distance" yaml:"distance"`

	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	VectorDB  VectorDBConfig  `json:"vectordb" yaml:"vectordb"`
	Remote    RemoteConfig    `json:"remote" yaml:"remote"`
	Ranking   RankingConfig   `json:"ranking" yaml:"ranking"`
	Random    RandomConfig    `json:"random" yaml:"random"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is hash, tei, or openai (default: hash).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the inference-service base URL (tei, openai).
	URL string `json:"url" yaml:"url"`

	// Model is the model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against hosted services (openai, optional).
	APIKey string `json:"api_key" yaml:"api_key"`

	// BatchSize is the maximum texts per inference request (default: 32).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Format is raw or e5 (default: raw).
	Format string `json:"format" yaml:"format"`

	// Timeout for inference requests.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// VectorDBConfig points at the vector database (direct backend).
type VectorDBConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RemoteConfig points at the delegated retrieval service.
type RemoteConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Format  string        `json:"format" yaml:"format"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RankingConfig tunes confidence calibration and result post-processing.
type RankingConfig struct {
	// ShortTextChars: candidates with at most this many cleaned characters
	// take the short penalty unless the query is a literal substring
	// (default: 2).
	ShortTextChars int `json:"short_text_chars" yaml:"short_text_chars"`

	// MediumTextChars: candidates with at most this many cleaned characters
	// take the medium penalty (default: 4).
	MediumTextChars int `json:"medium_text_chars" yaml:"medium_text_chars"`

	// ShortPenalty multiplies confidence for very short texts (default: 0.35).
	ShortPenalty float64 `json:"short_penalty" yaml:"short_penalty"`

	// MediumPenalty multiplies confidence for short texts (default: 0.7).
	MediumPenalty float64 `json:"medium_penalty" yaml:"medium_penalty"`

	// MinTokens is the minimum normalized token count for a candidate to
	// survive the low-information filter (default: 3).
	MinTokens int `json:"min_tokens" yaml:"min_tokens"`

	// OverfetchFactor multiplies the caller limit when fetching the
	// candidate pool (default: 3).
	OverfetchFactor int `json:"overfetch_factor" yaml:"overfetch_factor"`

	// OverfetchFloor is the minimum pool size (default: 50).
	OverfetchFloor int `json:"overfetch_floor" yaml:"overfetch_floor"`
}

// RandomConfig tunes random-entry selection.
type RandomConfig struct {
	// SearchLimit is the random-vector search pool size (default: 50).
	SearchLimit int `json:"search_limit" yaml:"search_limit"`

	// MaxRetries bounds random-vector search attempts (default: 20).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MinWords is the default word-count quality gate (default: 3).
	MinWords int `json:"min_words" yaml:"min_words"`

	// FallbackBatch is the scroll batch size for the fallback path
	// (default: 100).
	FallbackBatch int `json:"fallback_batch" yaml:"fallback_batch"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.Collection == "" {
		c.Collection = "subtitles"
	}
	if c.VectorDim <= 0 {
		c.VectorDim = 384
	}
	if c.Distance == "" {
		c.Distance = "Cosine"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Format == "" {
		c.Embedding.Format = "raw"
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = 60 * time.Second
	}

	if c.VectorDB.Timeout <= 0 {
		c.VectorDB.Timeout = 30 * time.Second
	}

	if c.Remote.Format == "" {
		c.Remote.Format = "e5"
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 30 * time.Second
	}

	if c.Ranking.ShortTextChars <= 0 {
		c.Ranking.ShortTextChars = 2
	}
	if c.Ranking.MediumTextChars <= 0 {
		c.Ranking.MediumTextChars = 4
	}
	if c.Ranking.ShortPenalty <= 0 {
		c.Ranking.ShortPenalty = 0.35
	}
	if c.Ranking.MediumPenalty <= 0 {
		c.Ranking.MediumPenalty = 0.7
	}
	if c.Ranking.MinTokens <= 0 {
		c.Ranking.MinTokens = 3
	}
	if c.Ranking.OverfetchFactor <= 0 {
		c.Ranking.OverfetchFactor = 3
	}
	if c.Ranking.OverfetchFloor <= 0 {
		c.Ranking.OverfetchFloor = 50
	}

	if c.Random.SearchLimit <= 0 {
		c.Random.SearchLimit = 50
	}
	if c.Random.MaxRetries <= 0 {
		c.Random.MaxRetries = 20
	}
	if c.Random.MinWords <= 0 {
		c.Random.MinWords = 3
	}
	if c.Random.FallbackBatch <= 0 {
		c.Random.FallbackBatch = 100
	}
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. An empty path skips the file and
// builds the config from environment and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "Config", "Load", "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
		}
	}

	cfg.FromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv overrides fields from the environment. The variable names match
// the deployment knobs of the original service.
func (c *Config) FromEnv() {
	if v := os.Getenv("SEARCH_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("TEI_URL"); v != "" {
		c.Embedding.URL = v
		if c.Embedding.Provider == "" || c.Embedding.Provider == "hash" {
			c.Embedding.Provider = "tei"
		}
	}
	if v := os.Getenv("TEI_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.BatchSize = n
		}
	}
	if v := os.Getenv("EMBED_FORMAT"); v != "" {
		c.Embedding.Format = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.VectorDB.URL = v
	}
	if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
		c.Collection = v
	}
	if v := os.Getenv("VECTOR_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.VectorDim = n
		}
	}
	if v := os.Getenv("REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
}

// Validate checks cross-field requirements after defaults are applied.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		// no collaborators required
	case BackendDirect:
		if c.VectorDB.URL == "" {
			return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
				"direct backend requires vectordb.url")
		}
	case BackendDelegated:
		if c.Remote.URL == "" {
			return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
				"delegated backend requires remote.url")
		}
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown backend %q", c.Backend))
	}

	switch c.Embedding.Provider {
	case "hash", "tei", "openai":
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if (c.Embedding.Provider == "tei" || c.Embedding.Provider == "openai") && c.Embedding.URL == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			fmt.Sprintf("%s embedding provider requires embedding.url", c.Embedding.Provider))
	}

	switch c.Embedding.Format {
	case "raw", "e5":
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown embedding format %q", c.Embedding.Format))
	}

	if c.Ranking.ShortPenalty > 1 || c.Ranking.MediumPenalty > 1 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"ranking penalties must not exceed 1")
	}
	if c.Ranking.ShortTextChars > c.Ranking.MediumTextChars {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"short_text_chars must not exceed medium_text_chars")
	}

	return nil
}
