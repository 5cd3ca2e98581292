// Package search orchestrates subtitle retrieval: it owns the engine
// lifecycle, delegates to a configured backend strategy, and calibrates raw
// similarity scores into bounded confidences before handing results back to
// callers.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sunhengzhe/easylish/config"
	"github.com/sunhengzhe/easylish/embedding"
	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/remote"
	"github.com/sunhengzhe/easylish/subtitle"
	"github.com/sunhengzhe/easylish/vectordb"
)

// Candidate is a raw backend match before calibration.
type Candidate struct {
	Entry subtitle.Entry
	Score float64
}

// ScoreRange declares the similarity range a backend emits, so the ranker
// can map raw scores into [0,1] confidences without guessing.
type ScoreRange struct {
	Min float64
	Max float64
}

// Normalize maps a raw score into [0,1], clamping out-of-range values.
func (r ScoreRange) Normalize(score float64) float64 {
	span := r.Max - r.Min
	if span <= 0 {
		return 0
	}
	v := (score - r.Min) / span
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Backend is a retrieval strategy. The engine picks one at construction and
// never switches at runtime.
type Backend interface {
	// Initialize loads entries into the backend's store. Idempotent per
	// entry id.
	Initialize(ctx context.Context, entries []subtitle.Entry) error

	// Search returns up to topK raw candidates for the query.
	Search(ctx context.Context, query string, topK int) ([]Candidate, error)

	// Ready reports true operational readiness, not just that Initialize
	// returned.
	Ready(ctx context.Context) bool

	// Random returns a random entry whose text has at least minWords
	// words, or nil if nothing qualifies.
	Random(ctx context.Context, minWords int) (*subtitle.Entry, error)

	// ScoreRange declares the similarity range Search emits.
	ScoreRange() ScoreRange

	// Source tags results with the retrieval path that produced them.
	Source() string
}

// NewBackend builds the backend strategy named by cfg.Backend.
func NewBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.BackendLocal, "":
		embedder, err := embedding.NewProvider(ctx, embedding.ProviderConfig{
			Provider:   cfg.Embedding.Provider,
			URL:        cfg.Embedding.URL,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			Format:     cfg.Embedding.Format,
			BatchSize:  cfg.Embedding.BatchSize,
			Dimensions: cfg.VectorDim,
			Timeout:    cfg.Embedding.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return newLocalBackend(embedder, cfg.Random, logger), nil

	case config.BackendDirect:
		embedder, err := embedding.NewTEIEmbedder(embedding.TEIConfig{
			BaseURL:    cfg.Embedding.URL,
			Model:      cfg.Embedding.Model,
			Format:     cfg.Embedding.Format,
			BatchSize:  cfg.Embedding.BatchSize,
			Dimensions: cfg.VectorDim,
			Timeout:    cfg.Embedding.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		db, err := vectordb.NewClient(vectordb.Config{
			URL:        cfg.VectorDB.URL,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorDim,
			Distance:   cfg.Distance,
			Timeout:    cfg.VectorDB.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return newDirectBackend(embedder, db, cfg.VectorDim, cfg.Random, logger), nil

	case config.BackendDelegated:
		client, err := remote.NewClient(remote.Config{
			URL:     cfg.Remote.URL,
			Format:  cfg.Remote.Format,
			Timeout: cfg.Remote.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return newDelegatedBackend(client, logger), nil

	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown backend %q", cfg.Backend),
			"search", "NewBackend", "backend selection")
	}
}
