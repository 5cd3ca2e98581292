package search

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/sunhengzhe/easylish/config"
	"github.com/sunhengzhe/easylish/embedding"
	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/index"
	"github.com/sunhengzhe/easylish/subtitle"
)

// localBackend embeds and indexes entries in process. Hash vectors are not
// normalized against a model space, so raw cosine spans [-1,1].
type localBackend struct {
	embedder embedding.Embedder
	index    *index.Memory
	random   config.RandomConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]subtitle.Entry

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func newLocalBackend(embedder embedding.Embedder, random config.RandomConfig, logger *slog.Logger) *localBackend {
	return &localBackend{
		embedder: embedder,
		index:    index.NewMemory(index.MemoryConfig{Logger: logger}),
		random:   random,
		logger:   logger,
		entries:  make(map[string]subtitle.Entry),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *localBackend) Initialize(ctx context.Context, entries []subtitle.Entry) error {
	if err := b.index.Upsert(ctx, entries, b.embedder); err != nil {
		return errors.Wrap(err, "localBackend", "Initialize", "index upsert")
	}

	b.mu.Lock()
	for _, e := range entries {
		b.entries[e.ID] = e
	}
	b.mu.Unlock()

	return nil
}

func (b *localBackend) Search(ctx context.Context, query string, topK int) ([]Candidate, error) {
	vectors, err := b.embedder.Generate(ctx, []string{query}, embedding.RoleQuery)
	if err != nil {
		return nil, errors.Wrap(err, "localBackend", "Search", "embed query")
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, nil
	}

	hits := b.index.Query(vectors[0], topK)

	b.mu.RLock()
	defer b.mu.RUnlock()

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		entry, ok := b.entries[hit.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Entry: entry, Score: hit.Score})
	}
	return candidates, nil
}

func (b *localBackend) Ready(_ context.Context) bool {
	return b.index.Size() > 0
}

func (b *localBackend) Random(_ context.Context, minWords int) (*subtitle.Entry, error) {
	ids := b.index.IDs()
	if len(ids) == 0 {
		return nil, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	retries := b.random.MaxRetries
	if retries <= 0 {
		retries = 20
	}
	for attempt := 0; attempt < retries; attempt++ {
		id := ids[b.randIntn(len(ids))]
		entry, ok := b.entries[id]
		if !ok {
			continue
		}
		if subtitle.TokenCount(entry.Text) >= minWords {
			return &entry, nil
		}
	}

	// Random picks kept landing on short captions; scan for any qualifier.
	for _, id := range ids {
		entry, ok := b.entries[id]
		if ok && subtitle.TokenCount(entry.Text) >= minWords {
			return &entry, nil
		}
	}
	return nil, nil
}

func (b *localBackend) ScoreRange() ScoreRange {
	return ScoreRange{Min: -1, Max: 1}
}

func (b *localBackend) Source() string {
	return "local"
}

// Size reports the total number of indexed chunks, across all batches
// indexed so far.
func (b *localBackend) Size() int {
	return b.index.Size()
}

// FallbackChunks reports how many chunks the index embedded with the hash
// fallback after primary embedder failures.
func (b *localBackend) FallbackChunks() int64 {
	return b.index.FallbackChunks()
}

func (b *localBackend) randIntn(n int) int {
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.rnd.Intn(n)
}
