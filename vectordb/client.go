// Package vectordb provides an HTTP client for the Qdrant vector database,
// covering the subset of the REST API the retrieval backends need.
package vectordb

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

	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/pkg/retry"
)

// Payload is the denormalized entry data stored alongside each vector, so a
// search hit can be hydrated without a second lookup.
type Payload struct {
	EntryID        string `json:"entry_id"`
	VideoID        string `json:"video_id"`
	Episode        int    `json:"episode"`
	Sequence       int    `json:"sequence"`
	StartMS        int64  `json:"start_ms"`
	EndMS          int64  `json:"end_ms"`
	Text           string `json:"text"`
	NormalizedText string `json:"normalized_text"`
}

// Point is a vector with its id and payload, ready for upsert.
type Point struct {
	ID      any       `json:"id"` // uint64 or UUID string, see PointID
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a search or scroll result.
type ScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload Payload         `json:"payload"`
}

// CollectionStatus reports the collection's health and size.
type CollectionStatus struct {
	Exists      bool
	Status      string
	PointsCount int64
}

// Config configures the Qdrant client.
type Config struct {
	// URL is the Qdrant base URL, e.g. "http://localhost:6333".
	URL string

	// Collection is the collection name.
	Collection string

	// VectorSize is the vector width used when creating the collection.
	VectorSize int

	// Distance is the similarity metric (default: "Cosine").
	Distance string

	// UpsertBatch is the number of points per upsert request (default: 128).
	UpsertBatch int

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// Retry controls retry behavior for upserts and searches. Zero value
	// derives defaults from errors.DefaultRetryConfig().
	Retry retry.Config

	// HTTPClient overrides the default client (useful for tests).
	HTTPClient *http.Client

	// Logger (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// Client talks to a Qdrant instance over its REST API.
//
// The collection is created lazily: the first data operation ensures it
// exists, matching the original service behavior where every path could be
// hit on a fresh database.
type Client struct {
	baseURL     string
	collection  string
	vectorSize  int
	distance    string
	upsertBatch int
	client      *http.Client
	retryCfg    retry.Config
	logger      *slog.Logger
	ensured     atomic.Bool
}

// deleteBatchSize bounds a single delete-by-ids request.
const deleteBatchSize = 512

// NewClient creates a Qdrant REST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "VectorDB", "New", "require URL")
	}
	if cfg.Collection == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "VectorDB", "New", "require collection name")
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 384
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}
	if cfg.UpsertBatch <= 0 {
		cfg.UpsertBatch = 128
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = errors.DefaultRetryConfig().ToRetryConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		collection:  cfg.Collection,
		vectorSize:  cfg.VectorSize,
		distance:    cfg.Distance,
		upsertBatch: cfg.UpsertBatch,
		client:      client,
		retryCfg:    retryCfg,
		logger:      logger,
	}, nil
}

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	return c.collection
}

// EnsureCollection creates the collection when it does not exist. Idempotent.
func (c *Client) EnsureCollection(ctx context.Context) error {
	var probe struct {
		Result json.RawMessage `json:"result"`
	}
	err := c.doJSON(ctx, http.MethodGet, c.collectionPath(""), nil, &probe)
	if err == nil {
		c.ensured.Store(true)
		return nil
	}

	create := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": c.distance,
		},
	}
	if err := c.doJSON(ctx, http.MethodPut, c.collectionPath(""), create, nil); err != nil {
		return errors.WrapTransient(err, "VectorDB", "EnsureCollection", "create collection")
	}

	c.logger.Info("collection created", "collection", c.collection, "vector_size", c.vectorSize)
	c.ensured.Store(true)
	return nil
}

func (c *Client) ensure(ctx context.Context) error {
	if c.ensured.Load() {
		return nil
	}
	return c.EnsureCollection(ctx)
}

// UpsertPoints writes points in batches, retrying each batch on transient
// failures. A nil or empty slice is a no-op.
func (c *Client) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := c.ensure(ctx); err != nil {
		return err
	}

	for start := 0; start < len(points); start += c.upsertBatch {
		end := start + c.upsertBatch
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]

		err := retry.Do(ctx, c.retryCfg, func() error {
			body := map[string]any{"points": batch}
			return c.doJSON(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), body, nil)
		})
		if err != nil {
			return errors.WrapTransient(err, "VectorDB", "UpsertPoints", "upsert batch")
		}
	}

	c.logger.Debug("points upserted", "collection", c.collection, "points", len(points))
	return nil
}

// Search returns the topK nearest points with payloads. topK is clamped to
// the 1..100 range the service enforces.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]ScoredPoint, error) {
	if topK < 1 {
		topK = 1
	}
	if topK > 100 {
		topK = 100
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var resp struct {
		Result []ScoredPoint `json:"result"`
	}
	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.doJSON(ctx, http.MethodPost, c.collectionPath("/points/search"), body, &resp)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "VectorDB", "Search", "search points")
	}
	return resp.Result, nil
}

// Count returns the exact number of points in the collection.
func (c *Client) Count(ctx context.Context) (int64, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := c.doJSON(ctx, http.MethodPost, c.collectionPath("/points/count"), body, &resp); err != nil {
		return 0, errors.WrapTransient(err, "VectorDB", "Count", "count points")
	}
	return resp.Result.Count, nil
}

// Scroll pages through the collection with payloads. The returned offset is
// the next page token (nil at the end).
func (c *Client) Scroll(ctx context.Context, limit int, offset json.RawMessage) ([]ScoredPoint, json.RawMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	if err := c.ensure(ctx); err != nil {
		return nil, nil, err
	}

	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if len(offset) > 0 {
		body["offset"] = offset
	}

	var resp struct {
		Result struct {
			Points     []ScoredPoint   `json:"points"`
			NextOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.collectionPath("/points/scroll"), body, &resp); err != nil {
		return nil, nil, errors.WrapTransient(err, "VectorDB", "Scroll", "scroll points")
	}

	next := resp.Result.NextOffset
	if string(next) == "null" {
		next = nil
	}
	return resp.Result.Points, next, nil
}

// DeletePoints removes points by id.
func (c *Client) DeletePoints(ctx context.Context, ids []any) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	if err := c.doJSON(ctx, http.MethodPost, c.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return errors.WrapTransient(err, "VectorDB", "DeletePoints", "delete points")
	}
	return nil
}

// DeleteByPrefix removes every point whose payload entry id starts with the
// given prefix. The collection is scanned with Scroll and matching ids are
// deleted in batches.
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidQuery, "VectorDB", "DeleteByPrefix", "require prefix")
	}

	deleted := 0
	var pending []any
	var offset json.RawMessage

	for {
		points, next, err := c.Scroll(ctx, 1000, offset)
		if err != nil {
			return deleted, err
		}

		for _, p := range points {
			if strings.HasPrefix(p.Payload.EntryID, prefix) {
				pending = append(pending, json.RawMessage(p.ID))
			}
			if len(pending) >= deleteBatchSize {
				if err := c.DeletePoints(ctx, pending); err != nil {
					return deleted, err
				}
				deleted += len(pending)
				pending = pending[:0]
			}
		}

		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}

	if len(pending) > 0 {
		if err := c.DeletePoints(ctx, pending); err != nil {
			return deleted, err
		}
		deleted += len(pending)
	}

	c.logger.Info("points deleted by prefix", "collection", c.collection, "prefix", prefix, "deleted", deleted)
	return deleted, nil
}

// Status reports whether the collection exists and how many points it holds.
func (c *Client) Status(ctx context.Context) (CollectionStatus, error) {
	var resp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
		} `json:"result"`
	}
	err := c.doJSON(ctx, http.MethodGet, c.collectionPath(""), nil, &resp)
	if err != nil {
		// 4xx means the collection is absent; anything else is a real failure
		if retry.IsNonRetryable(err) {
			return CollectionStatus{Exists: false}, nil
		}
		return CollectionStatus{}, err
	}

	return CollectionStatus{
		Exists:      true,
		Status:      resp.Result.Status,
		PointsCount: resp.Result.PointsCount,
	}, nil
}

func (c *Client) collectionPath(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", c.collection, suffix)
}

// doJSON performs one request against the REST API. Non-2xx responses
// become errors carrying the status and a truncated body; 4xx responses are
// marked non-retryable.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return retry.NonRetryable(errors.WrapInvalid(err, "VectorDB", "doJSON", "marshal request"))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return retry.NonRetryable(errors.WrapInvalid(err, "VectorDB", "doJSON", "build request"))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrCollaboratorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", errors.ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("%w: %s %s returned %d: %s",
			errors.ErrRequestFailed, method, path, resp.StatusCode, truncate(data))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.NonRetryable(statusErr)
		}
		return statusErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return retry.NonRetryable(fmt.Errorf("%w: %v", errors.ErrInvalidResponseShape, err))
		}
	}
	return nil
}

func truncate(body []byte) string {
	const limit = 256
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
