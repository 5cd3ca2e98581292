package embedding

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sunhengzhe/easylish/errors"
)

// OpenAIEmbedder calls an OpenAI-compatible embedding endpoint via the
// standard OpenAI SDK.
//
// This implementation works with:
//   - TEI behind its OpenAI-compatible /v1 route
//   - LocalAI (self-hosted)
//   - OpenAI (cloud)
//
// Role prefixes are applied the same way as for the TEI embedder when the
// configured format is e5.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	format string
	cache  Cache
	logger *slog.Logger

	// dimensions is read and refreshed on the serving path, where searches
	// run concurrently.
	dimensions atomic.Int64
}

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// BaseURL is the base URL of the embedding service, e.g.
	// "http://localhost:8080/v1" or "https://api.openai.com/v1".
	BaseURL string

	// Model is the embedding model to use, e.g. "text-embedding-3-small"
	// or the model name TEI was started with.
	Model string

	// APIKey for authentication (optional for local services).
	APIKey string

	// Format selects the input format: FormatRaw (default) or FormatE5.
	Format string

	// Dimensions is the expected vector width (default: 384). Updated from
	// the first response.
	Dimensions int

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// Cache for embedding results (optional).
	Cache Cache

	// Logger for warnings (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// NewOpenAIEmbedder creates a new OpenAI-compatible embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "OpenAIEmbedder", "New", "require base URL")
	}
	if cfg.Model == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "OpenAIEmbedder", "New", "require model")
	}

	format := cfg.Format
	if format == "" {
		format = FormatRaw
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key" // Local services don't need a real key
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 384
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		format: format,
		cache:  cfg.Cache,
		logger: logger,
	}
	o.dimensions.Store(int64(dimensions))
	return o, nil
}

// Generate creates embeddings by calling the OpenAI-compatible service.
//
// The cache is checked first (if configured); only cache misses reach the
// API. Blank inputs yield a nil vector at their index.
func (o *OpenAIEmbedder) Generate(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	uncachedIndexes := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		formatted := formatText(text, o.format, role)
		if formatted == "" {
			continue
		}

		if o.cache != nil {
			if cached, err := o.cache.Get(ctx, ContentHash(formatted)); err == nil {
				embeddings[i] = cached
				continue
			}
		}

		uncachedIndexes = append(uncachedIndexes, i)
		uncachedTexts = append(uncachedTexts, formatted)
	}

	if len(uncachedTexts) == 0 {
		return embeddings, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: uncachedTexts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "OpenAIEmbedder", "Generate", "call embedding API")
	}

	if len(resp.Data) != len(uncachedTexts) {
		return nil, errors.WrapInvalid(errors.ErrEmbeddingMismatch, "OpenAIEmbedder", "Generate",
			"match response data to inputs")
	}

	for i, data := range resp.Data {
		embeddings[uncachedIndexes[i]] = data.Embedding
		if len(data.Embedding) > 0 {
			o.dimensions.Store(int64(len(data.Embedding)))
		}

		if o.cache != nil {
			hash := ContentHash(uncachedTexts[i])
			if err := o.cache.Put(ctx, hash, data.Embedding); err != nil {
				// Cache is best-effort
				o.logger.Warn("embedding cache put failed", "hash", hash, "error", err)
			}
		}
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings produced.
func (o *OpenAIEmbedder) Dimensions() int {
	return int(o.dimensions.Load())
}

// Model returns the model identifier.
func (o *OpenAIEmbedder) Model() string {
	return o.model
}

// Close releases resources (no-op for HTTP client).
func (o *OpenAIEmbedder) Close() error {
	return nil
}

// formatText trims the input and applies the role prefix for e5 formats.
// Blank input stays blank so callers can skip it.
func formatText(text, format string, role Role) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if format == FormatE5 {
		return role.e5Prefix() + t
	}
	return t
}
