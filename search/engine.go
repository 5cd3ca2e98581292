package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sunhengzhe/easylish/config"
	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/health"
	"github.com/sunhengzhe/easylish/metric"
	"github.com/sunhengzhe/easylish/subtitle"
)

// State is the engine lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Response is the search answer handed to callers.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// EngineConfig configures the retrieval engine.
type EngineConfig struct {
	// Backend is the retrieval strategy, chosen once (required).
	Backend Backend

	// Ranking tunes calibration and post-processing.
	Ranking config.RankingConfig

	// Random tunes random-entry selection.
	Random config.RandomConfig

	// Metrics receives engine observations (optional).
	Metrics *metric.Metrics

	// Logger for lifecycle events (optional).
	Logger *slog.Logger
}

// Engine orchestrates retrieval over one backend. Searches against a
// not-ready engine return an empty response rather than an error, so callers
// can poll during initialization.
type Engine struct {
	backend Backend
	ranker  *Ranker
	random  config.RandomConfig
	metrics *metric.Metrics
	logger  *slog.Logger

	state         atomic.Int32
	indexed       atomic.Int64
	errCount      atomic.Int64
	fallbacksSeen atomic.Int64
	lastErr       atomic.Pointer[error]
	initGroup     singleflight.Group
	startedAt     time.Time
}

// NewEngine creates an engine in the Uninitialized state.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Backend == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Engine", "NewEngine", "backend is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		backend:   cfg.Backend,
		ranker:    NewRanker(cfg.Ranking, cfg.Backend.ScoreRange(), cfg.Backend.Source()),
		random:    cfg.Random,
		metrics:   cfg.Metrics,
		logger:    logger,
		startedAt: time.Now(),
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Ready reports whether the engine is serving.
func (e *Engine) Ready() bool {
	return e.State() == StateReady
}

// Source returns the configured backend's source tag.
func (e *Engine) Source() string {
	return e.backend.Source()
}

// Initialize builds the backend from the supplied entries. Concurrent calls
// share one in-flight initialization; a failure resets the engine to
// Uninitialized so callers can retry from scratch.
func (e *Engine) Initialize(ctx context.Context, entries []subtitle.Entry) error {
	_, err, _ := e.initGroup.Do("initialize", func() (any, error) {
		return nil, e.initialize(ctx, entries)
	})
	return err
}

// Reload resets the engine to Uninitialized and re-initializes with the
// supplied entries. Backends index additively, so entries from earlier
// batches remain searchable; the reported index size reflects the full
// backend contents, not just the latest batch.
func (e *Engine) Reload(ctx context.Context, entries []subtitle.Entry) error {
	e.state.Store(int32(StateUninitialized))
	e.setReady(false)
	e.logger.Info("engine reloading", "entries", len(entries))
	return e.Initialize(ctx, entries)
}

func (e *Engine) initialize(ctx context.Context, entries []subtitle.Entry) error {
	e.state.Store(int32(StateInitializing))
	start := time.Now()

	if err := e.backend.Initialize(ctx, entries); err != nil {
		e.state.Store(int32(StateUninitialized))
		e.setReady(false)
		wrapped := errors.Wrap(err, "Engine", "Initialize", "backend initialization")
		e.recordError(wrapped)
		return wrapped
	}

	if !e.backend.Ready(ctx) {
		e.state.Store(int32(StateUninitialized))
		e.setReady(false)
		wrapped := errors.WrapTransient(errors.ErrInitializeFailed,
			"Engine", "Initialize", "backend not ready after initialization")
		e.recordError(wrapped)
		return wrapped
	}

	indexed := int64(len(entries))
	if sizer, ok := e.backend.(interface{ Size() int }); ok {
		indexed = int64(sizer.Size())
	}
	e.state.Store(int32(StateReady))
	e.indexed.Store(indexed)
	e.lastErr.Store(nil)
	e.setReady(true)
	if e.metrics != nil {
		e.metrics.InitDuration.Observe(time.Since(start).Seconds())
		e.metrics.IndexSize.Set(float64(indexed))
		if fb, ok := e.backend.(interface{ FallbackChunks() int64 }); ok {
			total := fb.FallbackChunks()
			if delta := total - e.fallbacksSeen.Swap(total); delta > 0 {
				e.metrics.EmbeddingFallbacks.Add(float64(delta))
			}
		}
	}
	e.logger.Info("engine ready",
		"source", e.backend.Source(),
		"entries", len(entries),
		"indexed", indexed,
		"elapsed", time.Since(start))
	return nil
}

// SearchTopK returns up to limit calibrated results for the query. A
// not-ready engine or a blank query yields an empty response, not an error.
func (e *Engine) SearchTopK(ctx context.Context, query string, limit int) (*Response, error) {
	empty := &Response{Results: []Result{}, Query: query}
	if !e.Ready() || strings.TrimSpace(query) == "" {
		return empty, nil
	}
	if limit <= 0 {
		limit = 1
	}

	start := time.Now()
	candidates, err := e.backend.Search(ctx, query, e.ranker.PoolSize(limit))
	if err != nil {
		e.recordSearch("error", start)
		wrapped := errors.Wrap(err, "Engine", "SearchTopK", "backend search")
		e.recordError(wrapped)
		return nil, wrapped
	}

	results := e.ranker.Process(query, candidates, limit)
	e.recordSearch("ok", start)
	return &Response{Results: results, Total: len(results), Query: query}, nil
}

// Random returns a random entry whose text has at least minWords words
// (default from config when minWords <= 0), or nil when nothing qualifies.
func (e *Engine) Random(ctx context.Context, minWords int) (*subtitle.Entry, error) {
	if !e.Ready() {
		return nil, errors.WrapTransient(errors.ErrNotReady,
			"Engine", "Random", "engine not initialized")
	}
	if minWords <= 0 {
		minWords = e.random.MinWords
	}
	if minWords <= 0 {
		minWords = 3
	}

	entry, err := e.backend.Random(ctx, minWords)
	if err != nil {
		wrapped := errors.Wrap(err, "Engine", "Random", "backend random")
		e.recordError(wrapped)
		return nil, wrapped
	}
	return entry, nil
}

// Health reports the engine's operational status with the backend as a
// sub-status. Error messages are sanitized before exposure.
func (e *Engine) Health(ctx context.Context) health.Status {
	var engineStatus health.Status
	switch e.State() {
	case StateReady:
		engineStatus = health.NewHealthy("engine", "serving")
	case StateInitializing:
		engineStatus = health.NewDegraded("engine", "initializing")
	default:
		if err := e.lastError(); err != nil {
			engineStatus = health.FromError("engine", err)
		} else {
			engineStatus = health.NewUnhealthy("engine", "not initialized")
		}
	}

	backendName := "backend:" + e.backend.Source()
	var backendStatus health.Status
	if e.backend.Ready(ctx) {
		backendStatus = health.NewHealthy(backendName, "ready")
	} else {
		backendStatus = health.NewUnhealthy(backendName, "not ready")
	}

	if e.metrics != nil {
		e.metrics.SetHealth("engine", engineStatus.IsHealthy())
		e.metrics.SetHealth(backendName, backendStatus.IsHealthy())
	}

	now := time.Now()
	return health.Aggregate("search", []health.Status{engineStatus, backendStatus}).
		WithMetrics(&health.Metrics{
			Uptime:       now.Sub(e.startedAt),
			ErrorCount:   int(e.errCount.Load()),
			IndexedCount: e.indexed.Load(),
			LastActivity: now,
		})
}

func (e *Engine) recordSearch(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordSearch(e.backend.Source(), status, time.Since(start))
}

func (e *Engine) recordError(err error) {
	e.errCount.Add(1)
	if err != nil {
		e.lastErr.Store(&err)
	}
	if e.metrics != nil {
		e.metrics.RecordError("engine")
	}
}

func (e *Engine) lastError() error {
	if p := e.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (e *Engine) setReady(ready bool) {
	if e.metrics != nil {
		e.metrics.SetReady(ready)
	}
}
