package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunhengzhe/easylish/errors"
)

// Provider names accepted by NewProvider.
const (
	ProviderHash   = "hash"
	ProviderTEI    = "tei"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and configures an embedder implementation.
type ProviderConfig struct {
	// Provider is one of ProviderHash, ProviderTEI, ProviderOpenAI.
	// Empty selects ProviderHash.
	Provider string

	// URL is the inference-service base URL (tei, openai).
	URL string

	// Model is the model identifier (openai; informational for tei).
	Model string

	// APIKey for authentication (openai, optional).
	APIKey string

	// Format is FormatRaw or FormatE5.
	Format string

	// BatchSize is the maximum texts per request (tei).
	BatchSize int

	// Dimensions is the vector width (default 384).
	Dimensions int

	// Timeout for HTTP requests.
	Timeout time.Duration

	// ProbeTimeout bounds the connectivity probe (default 5s).
	ProbeTimeout time.Duration

	// Logger for fallback warnings (optional).
	Logger *slog.Logger
}

// NewProvider constructs the configured embedder and verifies it responds.
//
// Model-backed providers are probed with a single short embedding call.
// When construction or the probe fails, the provider degrades to the
// deterministic hash embedder instead of failing: retrieval quality drops
// but the engine stays available. The fallback is logged.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Embedder, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fallback := func(reason string, err error) Embedder {
		logger.Warn("embedding provider unavailable, using hash fallback",
			"provider", cfg.Provider,
			"reason", reason,
			"error", err)
		return NewHashEmbedder(HashConfig{Dimensions: cfg.Dimensions})
	}

	switch cfg.Provider {
	case "", ProviderHash:
		return NewHashEmbedder(HashConfig{Dimensions: cfg.Dimensions}), nil

	case ProviderTEI:
		embedder, err := NewTEIEmbedder(TEIConfig{
			BaseURL:    cfg.URL,
			Model:      cfg.Model,
			Format:     cfg.Format,
			BatchSize:  cfg.BatchSize,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return fallback("construction failed", err), nil
		}
		if err := probe(ctx, embedder, cfg.ProbeTimeout); err != nil {
			return fallback("probe failed", err), nil
		}
		return embedder, nil

	case ProviderOpenAI:
		embedder, err := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.URL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Format:     cfg.Format,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
			Cache:      NewMemoryCache(0),
			Logger:     logger,
		})
		if err != nil {
			return fallback("construction failed", err), nil
		}
		if err := probe(ctx, embedder, cfg.ProbeTimeout); err != nil {
			return fallback("probe failed", err), nil
		}
		return embedder, nil

	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Provider", "New",
			fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}

// probe issues one tiny embedding call to confirm the service answers.
func probe(ctx context.Context, embedder Embedder, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vectors, err := embedder.Generate(probeCtx, []string{"hello"}, RoleQuery)
	if err != nil {
		return err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return errors.ErrInvalidResponseShape
	}
	return nil
}
