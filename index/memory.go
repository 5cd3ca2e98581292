// Package index provides the in-process vector index backing the
// local-memory retrieval backend.
package index

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sunhengzhe/easylish/embedding"
	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/subtitle"
)

// Hit is a single query result: an entry id and its cosine similarity to
// the query vector.
type Hit struct {
	ID    string
	Score float64
}

// Memory is a brute-force in-memory vector index.
//
// Upserts are idempotent per entry id. Queries are safe for concurrent use;
// the serving path never mutates the index.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string][]float32

	chunkSize   int
	concurrency int
	fallback    embedding.Embedder
	fallbacks   atomic.Int64
	logger      *slog.Logger
}

// MemoryConfig configures the in-memory index.
type MemoryConfig struct {
	// ChunkSize is the number of entries embedded per batch (default: 64).
	ChunkSize int

	// Concurrency bounds the number of chunks embedded in parallel
	// (default: 4).
	Concurrency int

	// Fallback embeds a chunk when the primary embedder fails for it
	// (default: deterministic hash embedder).
	Fallback embedding.Embedder

	// Logger for fallback warnings (optional).
	Logger *slog.Logger
}

// NewMemory creates an empty in-memory index.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Fallback == nil {
		cfg.Fallback = embedding.NewHashEmbedder(embedding.HashConfig{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Memory{
		vectors:     make(map[string][]float32),
		chunkSize:   cfg.ChunkSize,
		concurrency: cfg.Concurrency,
		fallback:    cfg.Fallback,
		logger:      logger,
	}
}

// Upsert embeds the entries with the given embedder and stores the vectors.
//
// Entries are embedded in chunks with bounded concurrency. When the primary
// embedder fails for a chunk, that chunk alone is re-embedded with the
// fallback embedder; sibling chunks are unaffected. Existing ids are
// overwritten, so repeating an upsert leaves the index unchanged.
func (m *Memory) Upsert(ctx context.Context, entries []subtitle.Entry, embedder embedding.Embedder) error {
	if len(entries) == 0 {
		return nil
	}
	if embedder == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Memory", "Upsert", "require embedder")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for start := 0; start < len(entries); start += m.chunkSize {
		end := start + m.chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		g.Go(func() error {
			texts := make([]string, len(chunk))
			for i, entry := range chunk {
				texts[i] = entry.EmbeddingText()
			}

			vectors, err := embedder.Generate(gctx, texts, embedding.RolePassage)
			if err != nil {
				m.fallbacks.Add(1)
				m.logger.Warn("primary embedder failed for chunk, using fallback",
					"chunk_size", len(chunk),
					"error", err)

				vectors, err = m.fallback.Generate(gctx, texts, embedding.RolePassage)
				if err != nil {
					return errors.Wrap(err, "Memory", "Upsert", "embed chunk with fallback")
				}
			}
			if len(vectors) != len(chunk) {
				return errors.WrapInvalid(errors.ErrEmbeddingMismatch, "Memory", "Upsert", "match vectors to entries")
			}

			m.mu.Lock()
			for i, entry := range chunk {
				if vectors[i] == nil {
					continue // blank text, nothing to index
				}
				m.vectors[entry.ID] = vectors[i]
			}
			m.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Query returns the topK nearest entries by cosine similarity, sorted by
// descending score. topK <= 0 is clamped to 1, and the result is clamped to
// the index size.
func (m *Memory) Query(vector []float32, topK int) []Hit {
	if topK <= 0 {
		topK = 1
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.vectors))
	for id, stored := range m.vectors {
		hits = append(hits, Hit{ID: id, Score: embedding.CosineSimilarity(vector, stored)})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID // deterministic tie-break
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK]
}

// Size returns the number of indexed entries.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// IDs returns a snapshot of all indexed entry ids.
func (m *Memory) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.vectors))
	for id := range m.vectors {
		ids = append(ids, id)
	}
	return ids
}

// Vector returns the stored vector for an id.
func (m *Memory) Vector(id string) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.vectors[id]
	return vec, ok
}

// FallbackChunks reports how many chunks were embedded with the fallback
// embedder.
func (m *Memory) FallbackChunks() int64 {
	return m.fallbacks.Load()
}
