// Package remote provides the client for a delegated retrieval service: an
// external API that owns embedding, storage, and vector search, exposing
// them over plain JSON endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/pkg/retry"
	"github.com/sunhengzhe/easylish/subtitle"
)

// Hit is one delegated search result. The payload carries the denormalized
// entry written at upsert time.
type Hit struct {
	EntryID string         `json:"entryId"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// ServiceStatus is the delegated service's health report.
type ServiceStatus struct {
	OK         bool   `json:"ok"`
	Collection string `json:"collection"`
	Count      int64  `json:"count"`
}

// IngestStatus reports the service's background bulk-load job.
type IngestStatus struct {
	Running  bool   `json:"running"`
	Total    int    `json:"total"`
	Upserted int    `json:"upserted"`
	Errors   int    `json:"errors"`
	Dir      string `json:"dir"`
}

// Config configures the delegated retrieval client.
type Config struct {
	// URL is the service base URL.
	URL string

	// Format is the text format flag passed through on upsert and query
	// payloads: "raw" or "e5" (default: "e5", matching instruction-tuned
	// encoders).
	Format string

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// Retry controls retry behavior for queries. Zero value derives
	// defaults from errors.DefaultRetryConfig().
	Retry retry.Config

	// HTTPClient overrides the default client (useful for tests).
	HTTPClient *http.Client

	// Logger (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// Client calls a delegated retrieval service.
type Client struct {
	baseURL  string
	format   string
	client   *http.Client
	retryCfg retry.Config
	logger   *slog.Logger
}

// NewClient creates a delegated retrieval client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Remote", "New", "require URL")
	}

	format := cfg.Format
	if format == "" {
		format = "e5"
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
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		format:   format,
		client:   client,
		retryCfg: retryCfg,
		logger:   logger,
	}, nil
}

type upsertEntry struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	VideoID string `json:"video_id,omitempty"`
	Episode int    `json:"episode,omitempty"`
}

// UpsertEntries sends entries to the service for embedding and storage.
// Entries with blank text are filtered out before sending. Returns the
// number of entries the service reports as upserted.
func (c *Client) UpsertEntries(ctx context.Context, entries []subtitle.Entry) (int, error) {
	payload := make([]upsertEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		payload = append(payload, upsertEntry{
			ID:      e.ID,
			Text:    e.Text,
			VideoID: e.VideoID,
			Episode: e.Episode,
		})
	}
	if len(payload) == 0 {
		return 0, nil
	}

	body := map[string]any{
		"entries": payload,
		"format":  c.format,
	}
	var resp struct {
		Upserted int `json:"upserted"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/upsert", body, &resp); err != nil {
		return 0, errors.WrapTransient(err, "Remote", "UpsertEntries", "upsert entries")
	}
	return resp.Upserted, nil
}

// Search runs a delegated semantic query. Blank queries return no hits
// without a round trip.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 1
	}

	body := map[string]any{
		"query":  query,
		"top_k":  topK,
		"format": c.format,
	}

	var hits []Hit
	err := retry.Do(ctx, c.retryCfg, func() error {
		hits = nil
		return c.doJSON(ctx, http.MethodPost, "/query", body, &hits)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Remote", "Search", "query service")
	}
	return hits, nil
}

// Ingest asks the service to bulk-load subtitle files from a directory it
// can reach. The work runs in the service's background; accepted reports
// whether a new job started (false when one is already running).
func (c *Client) Ingest(ctx context.Context, dir string) (accepted bool, err error) {
	body := map[string]any{}
	if dir != "" {
		body["dir"] = dir
	}

	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ingest", body, &resp); err != nil {
		return false, errors.WrapTransient(err, "Remote", "Ingest", "trigger ingestion")
	}
	return resp.Accepted, nil
}

// IngestStatus reports the progress of the service's ingestion job.
func (c *Client) IngestStatus(ctx context.Context) (IngestStatus, error) {
	var status IngestStatus
	if err := c.doJSON(ctx, http.MethodGet, "/ingest/status", nil, &status); err != nil {
		return IngestStatus{}, errors.WrapTransient(err, "Remote", "IngestStatus", "fetch ingest status")
	}
	return status, nil
}

// Status reports the service's health and collection size.
func (c *Client) Status(ctx context.Context) (ServiceStatus, error) {
	var status ServiceStatus
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, &status); err != nil {
		return ServiceStatus{}, errors.WrapTransient(err, "Remote", "Status", "fetch status")
	}
	return status, nil
}

// DeleteByPrefix removes stored entries whose video id starts with the
// prefix. Returns the count the service reports (may be zero when the
// service cannot count the deletion).
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidQuery, "Remote", "DeleteByPrefix", "require prefix")
	}

	body := map[string]any{"video_id_prefix": prefix}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/delete", body, &resp); err != nil {
		return 0, errors.WrapTransient(err, "Remote", "DeleteByPrefix", "delete by prefix")
	}
	return resp.Deleted, nil
}

// Random fetches a random stored entry with at least minWords words.
func (c *Client) Random(ctx context.Context, minWords int) (*Hit, error) {
	body := map[string]any{}
	if minWords > 0 {
		body["min_words"] = minWords
	}

	var resp struct {
		EntryID string         `json:"entryId"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
		Error   string         `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/random", body, &resp); err != nil {
		return nil, errors.WrapTransient(err, "Remote", "Random", "fetch random entry")
	}
	if resp.Error != "" || resp.EntryID == "" {
		return nil, nil // service found nothing suitable
	}
	return &Hit{EntryID: resp.EntryID, Score: resp.Score, Payload: resp.Payload}, nil
}

// HitEntry hydrates a subtitle entry from a hit's payload. Missing fields
// stay zero-valued.
func HitEntry(h Hit) subtitle.Entry {
	entry := subtitle.Entry{ID: h.EntryID}
	if h.Payload == nil {
		return entry
	}

	if v, ok := h.Payload["entry_id"].(string); ok && v != "" {
		entry.ID = v
	}
	if v, ok := h.Payload["video_id"].(string); ok {
		entry.VideoID = v
	}
	if v, ok := h.Payload["episode"].(float64); ok {
		entry.Episode = int(v)
	}
	if v, ok := h.Payload["sequence"].(float64); ok {
		entry.Sequence = int(v)
	}
	if v, ok := h.Payload["start_ms"].(float64); ok {
		entry.StartMS = int64(v)
	}
	if v, ok := h.Payload["end_ms"].(float64); ok {
		entry.EndMS = int64(v)
	}
	if v, ok := h.Payload["text"].(string); ok {
		entry.Text = v
	}
	if v, ok := h.Payload["normalized_text"].(string); ok {
		entry.NormalizedText = v
	}
	return entry
}

// doJSON performs one request against the service. Non-2xx responses become
// errors carrying the status and a truncated body; 4xx responses are marked
// non-retryable.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return retry.NonRetryable(errors.WrapInvalid(err, "Remote", "doJSON", "marshal request"))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return retry.NonRetryable(errors.WrapInvalid(err, "Remote", "doJSON", "build request"))
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
