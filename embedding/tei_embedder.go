package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/pkg/retry"
)

// FormatRaw sends texts to the inference service unchanged; FormatE5 adds
// the "query: " / "passage: " instruction prefixes expected by e5-family
// encoders.
const (
	FormatRaw = "raw"
	FormatE5  = "e5"
)

// TEIEmbedder calls a Hugging Face Text Embeddings Inference service over
// its native /embed endpoint.
//
// Large batches are split into chunks so a single request stays small.
// Chunks are retried individually with exponential backoff, and a failed
// chunk does not abort its siblings: the successful vectors are returned
// alongside a ChunkError naming the chunks that failed. Inputs that are
// empty after trimming are never sent to the service; their slots hold a
// nil vector.
type TEIEmbedder struct {
	baseURL   string
	client    *http.Client
	format    string
	model     string
	batchSize int
	limiter   *rate.Limiter
	retryCfg  retry.Config
	logger    *slog.Logger

	// dimensions is read and refreshed on the serving path, where searches
	// run concurrently.
	dimensions atomic.Int64
}

// TEIConfig configures the TEI embedder.
type TEIConfig struct {
	// BaseURL is the base URL of the inference service, e.g.
	// "http://localhost:8080" (the /embed path is appended).
	BaseURL string

	// Model is a label for logging and health output. TEI serves a single
	// model per instance, so this is informational only.
	Model string

	// Format selects the input format: FormatRaw (default) or FormatE5.
	Format string

	// BatchSize is the maximum number of texts per request (default: 32).
	BatchSize int

	// Dimensions is the expected vector width (default: 384). Updated from
	// the first response.
	Dimensions int

	// Timeout for each HTTP request (default: 60s).
	Timeout time.Duration

	// RequestsPerSecond limits chunk calls to the service (0 = unlimited).
	RequestsPerSecond float64

	// Retry controls per-chunk retry behavior. Zero value derives
	// defaults from errors.DefaultRetryConfig().
	Retry retry.Config

	// HTTPClient overrides the default client (useful for tests).
	HTTPClient *http.Client

	// Logger for warnings (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// NewTEIEmbedder creates a new TEI-based embedder.
func NewTEIEmbedder(cfg TEIConfig) (*TEIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "TEIEmbedder", "New", "require base URL")
	}

	format := cfg.Format
	if format == "" {
		format = FormatRaw
	}
	if format != FormatRaw && format != FormatE5 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "TEIEmbedder", "New",
			fmt.Sprintf("unknown format %q", format))
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 384
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = errors.DefaultRetryConfig().ToRetryConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = fmt.Sprintf("tei-%s", format)
	}

	t := &TEIEmbedder{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    client,
		format:    format,
		model:     model,
		batchSize: batchSize,
		limiter:   limiter,
		retryCfg:  retryCfg,
		logger:    logger,
	}
	t.dimensions.Store(int64(dimensions))
	return t, nil
}

// ChunkFailure records one failed chunk of a batched embedding call.
type ChunkFailure struct {
	Chunk int // chunk ordinal within the call
	Size  int // number of texts in the chunk
	Err   error
}

// ChunkError reports the chunks of a batched call that failed after
// retries. The vectors for successful chunks are still returned.
type ChunkError struct {
	Failures []ChunkFailure
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("embedding failed for %d chunk(s): %v", len(e.Failures), e.Failures[0].Err)
}

// Unwrap exposes the underlying chunk errors for errors.Is/As.
func (e *ChunkError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Generate creates embeddings by calling the inference service.
//
// The result always has len(texts) slots in input order. Slots for blank
// inputs, and for inputs in failed chunks, are nil. When one or more chunks
// fail the error is a *ChunkError; callers that can tolerate partial
// results may keep the returned vectors.
func (t *TEIEmbedder) Generate(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))

	// Format and filter: blank inputs never reach the service.
	indices := make([]int, 0, len(texts))
	formatted := make([]string, 0, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if t.format == FormatE5 {
			trimmed = role.e5Prefix() + trimmed
		}
		indices = append(indices, i)
		formatted = append(formatted, trimmed)
	}
	if len(formatted) == 0 {
		return embeddings, nil
	}

	var failures []ChunkFailure
	for chunk := 0; chunk*t.batchSize < len(formatted); chunk++ {
		start := chunk * t.batchSize
		end := start + t.batchSize
		if end > len(formatted) {
			end = len(formatted)
		}
		batch := formatted[start:end]

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return embeddings, errors.WrapTransient(err, "TEIEmbedder", "Generate", "wait for rate limiter")
			}
		}

		vectors, err := retry.DoWithResult(ctx, t.retryCfg, func() ([][]float32, error) {
			return t.embedChunk(ctx, batch)
		})
		if err != nil {
			t.logger.Warn("embedding chunk failed",
				"chunk", chunk,
				"size", len(batch),
				"error", err)
			failures = append(failures, ChunkFailure{Chunk: chunk, Size: len(batch), Err: err})
			continue
		}

		for j, vec := range vectors {
			embeddings[indices[start+j]] = vec
			if len(vec) > 0 {
				t.dimensions.Store(int64(len(vec)))
			}
		}
	}

	if len(failures) > 0 {
		return embeddings, &ChunkError{Failures: failures}
	}
	return embeddings, nil
}

// embedChunk performs a single POST /embed call.
func (t *TEIEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string][]string{"inputs": texts})
	if err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "TEIEmbedder", "embedChunk", "marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "TEIEmbedder", "embedChunk", "build request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "TEIEmbedder", "embedChunk", "call inference service")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errors.WrapTransient(err, "TEIEmbedder", "embedChunk", "read response")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: inference service returned %d: %s",
			errors.ErrRequestFailed, resp.StatusCode, truncateBody(body))
		// Client errors won't heal on retry; 429 is the exception.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.NonRetryable(statusErr)
		}
		return nil, statusErr
	}

	vectors, err := decodeEmbeddings(body)
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	if len(vectors) != len(texts) {
		return nil, retry.NonRetryable(fmt.Errorf("%w: expected %d, got %d",
			errors.ErrEmbeddingMismatch, len(texts), len(vectors)))
	}
	return vectors, nil
}

// Dimensions returns the dimensionality of embeddings produced.
func (t *TEIEmbedder) Dimensions() int {
	return int(t.dimensions.Load())
}

// Model returns the model identifier.
func (t *TEIEmbedder) Model() string {
	return t.model
}

// Close releases resources (no-op for HTTP client).
func (t *TEIEmbedder) Close() error {
	return nil
}

// decodeEmbeddings parses the embedding matrix out of the known response
// shapes of TEI and OpenAI-compatible services:
//
//	[[...], [...]]                     bare matrix (TEI native)
//	[0.1, 0.2, ...]                    single bare vector
//	[{"embedding": [...]}, ...]        object list
//	{"embeddings": [[...], ...]}       wrapped matrix
//	{"data": [[...], ...]}             wrapped matrix, alt key
//	{"data": [{"embedding": ...}]}     OpenAI style
//	{"embedding": [...]}               single wrapped vector
//
// Anything else is ErrInvalidResponseShape; malformed responses are never
// coerced to zero vectors.
func decodeEmbeddings(data []byte) ([][]float32, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidResponseShape, err)
	}

	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return [][]float32{}, nil
		}
		switch v[0].(type) {
		case []any:
			return coerceMatrix(v)
		case float64:
			vec, err := coerceVector(v)
			if err != nil {
				return nil, err
			}
			return [][]float32{vec}, nil
		default:
			return coerceObjectList(v)
		}
	case map[string]any:
		if e, ok := v["embeddings"].([]any); ok {
			return coerceMatrix(e)
		}
		if d, ok := v["data"].([]any); ok {
			if len(d) > 0 {
				if _, isMatrix := d[0].([]any); isMatrix {
					return coerceMatrix(d)
				}
			}
			return coerceObjectList(d)
		}
		if e, ok := v["embedding"].([]any); ok {
			vec, err := coerceVector(e)
			if err != nil {
				return nil, err
			}
			return [][]float32{vec}, nil
		}
	}

	return nil, errors.ErrInvalidResponseShape
}

func coerceMatrix(rows []any) ([][]float32, error) {
	out := make([][]float32, 0, len(rows))
	for _, row := range rows {
		values, ok := row.([]any)
		if !ok {
			return nil, errors.ErrInvalidResponseShape
		}
		vec, err := coerceVector(values)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func coerceObjectList(items []any) ([][]float32, error) {
	out := make([][]float32, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		values, ok := obj["embedding"].([]any)
		if !ok || len(values) == 0 {
			continue
		}
		vec, err := coerceVector(values)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	if len(out) == 0 {
		return nil, errors.ErrInvalidResponseShape
	}
	return out, nil
}

func coerceVector(values []any) ([]float32, error) {
	vec := make([]float32, len(values))
	for i, value := range values {
		f, ok := value.(float64)
		if !ok {
			return nil, errors.ErrInvalidResponseShape
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

func truncateBody(body []byte) string {
	const limit = 256
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
