package search

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sunhengzhe/easylish/config"
	"github.com/sunhengzhe/easylish/embedding"
	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/subtitle"
	"github.com/sunhengzhe/easylish/vectordb"
)

// directBackend embeds via the inference service and stores/queries the
// vector database from this process. The database reports similarity already
// bounded to [0,1] for normalized model embeddings.
type directBackend struct {
	embedder embedding.Embedder
	db       *vectordb.Client
	dim      int
	random   config.RandomConfig
	logger   *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func newDirectBackend(
	embedder embedding.Embedder,
	db *vectordb.Client,
	dim int,
	random config.RandomConfig,
	logger *slog.Logger,
) *directBackend {
	return &directBackend{
		embedder: embedder,
		db:       db,
		dim:      dim,
		random:   random,
		logger:   logger,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *directBackend) Initialize(ctx context.Context, entries []subtitle.Entry) error {
	if err := b.db.EnsureCollection(ctx); err != nil {
		return errors.Wrap(err, "directBackend", "Initialize", "ensure collection")
	}
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.EmbeddingText()
	}

	vectors, err := b.embedder.Generate(ctx, texts, embedding.RolePassage)
	if err != nil {
		var chunkErr *embedding.ChunkError
		if !stderrors.As(err, &chunkErr) {
			return errors.Wrap(err, "directBackend", "Initialize", "embed entries")
		}
		// Partial failure: upsert the chunks that made it, report the rest.
		b.logger.Warn("some embedding chunks failed, upserting partial batch",
			"failed_chunks", len(chunkErr.Failures))
	}

	points := make([]vectordb.Point, 0, len(entries))
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		points = append(points, vectordb.NewPoint(entries[i], vec))
	}
	if err := b.db.UpsertPoints(ctx, points); err != nil {
		return errors.Wrap(err, "directBackend", "Initialize", "upsert points")
	}
	return nil
}

func (b *directBackend) Search(ctx context.Context, query string, topK int) ([]Candidate, error) {
	vectors, err := b.embedder.Generate(ctx, []string{query}, embedding.RoleQuery)
	if err != nil {
		return nil, errors.Wrap(err, "directBackend", "Search", "embed query")
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, nil
	}

	points, err := b.db.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, errors.Wrap(err, "directBackend", "Search", "vector search")
	}
	return pointCandidates(points), nil
}

func (b *directBackend) Ready(ctx context.Context) bool {
	status, err := b.db.Status(ctx)
	if err != nil {
		b.logger.Warn("vector database status check failed", "error", err)
		return false
	}
	return status.Exists && status.PointsCount > 0
}

// Random searches a random unit vector and picks a qualifying hit, retrying
// with fresh vectors. If the retry budget runs out it scrolls the collection
// instead, so sparse collections still return something.
func (b *directBackend) Random(ctx context.Context, minWords int) (*subtitle.Entry, error) {
	limit := b.random.SearchLimit
	if limit <= 0 {
		limit = 50
	}
	retries := b.random.MaxRetries
	if retries <= 0 {
		retries = 20
	}

	for attempt := 0; attempt < retries; attempt++ {
		points, err := b.db.Search(ctx, b.randomVector(), limit)
		if err != nil {
			return nil, errors.Wrap(err, "directBackend", "Random", "random vector search")
		}
		if entry := b.pickQualifying(points, minWords); entry != nil {
			return entry, nil
		}
	}

	batch := b.random.FallbackBatch
	if batch <= 0 {
		batch = 100
	}
	var offset json.RawMessage
	var pool []subtitle.Entry
	for {
		points, next, err := b.db.Scroll(ctx, batch, offset)
		if err != nil {
			return nil, errors.Wrap(err, "directBackend", "Random", "scroll fallback")
		}
		for _, p := range points {
			entry := p.Payload.Entry()
			if entry.ID != "" && subtitle.TokenCount(entry.Text) >= minWords {
				pool = append(pool, entry)
			}
		}
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}
	if len(pool) == 0 {
		return nil, nil
	}
	entry := pool[b.randIntn(len(pool))]
	return &entry, nil
}

func (b *directBackend) ScoreRange() ScoreRange {
	return ScoreRange{Min: 0, Max: 1}
}

func (b *directBackend) Source() string {
	return "direct"
}

// pickQualifying shuffles the pool and returns the first entry passing the
// word gate, checking at most ten picks per pool.
func (b *directBackend) pickQualifying(points []vectordb.ScoredPoint, minWords int) *subtitle.Entry {
	if len(points) == 0 {
		return nil
	}
	order := b.perm(len(points))
	picks := len(order)
	if picks > 10 {
		picks = 10
	}
	for _, i := range order[:picks] {
		entry := points[i].Payload.Entry()
		if entry.ID == "" {
			continue
		}
		if subtitle.TokenCount(entry.Text) >= minWords {
			return &entry
		}
	}
	return nil
}

func (b *directBackend) randomVector() []float32 {
	b.rndMu.Lock()
	defer b.rndMu.Unlock()

	vec := make([]float32, b.dim)
	var norm float64
	for i := range vec {
		v := b.rnd.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (b *directBackend) perm(n int) []int {
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.rnd.Perm(n)
}

func (b *directBackend) randIntn(n int) int {
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.rnd.Intn(n)
}

func pointCandidates(points []vectordb.ScoredPoint) []Candidate {
	candidates := make([]Candidate, 0, len(points))
	for _, p := range points {
		entry := p.Payload.Entry()
		if entry.ID == "" {
			continue
		}
		candidates = append(candidates, Candidate{Entry: entry, Score: p.Score})
	}
	return candidates
}
