package search

import (
	"context"
	"log/slog"

	"github.com/sunhengzhe/easylish/errors"
	"github.com/sunhengzhe/easylish/remote"
	"github.com/sunhengzhe/easylish/subtitle"
)

// delegatedBackend pushes raw entries to a separate retrieval service that
// owns embedding, storage, and query end to end.
type delegatedBackend struct {
	client *remote.Client
	logger *slog.Logger
}

func newDelegatedBackend(client *remote.Client, logger *slog.Logger) *delegatedBackend {
	return &delegatedBackend{client: client, logger: logger}
}

func (b *delegatedBackend) Initialize(ctx context.Context, entries []subtitle.Entry) error {
	if len(entries) == 0 {
		// The service may already hold data from its own ingestion.
		return nil
	}
	upserted, err := b.client.UpsertEntries(ctx, entries)
	if err != nil {
		return errors.Wrap(err, "delegatedBackend", "Initialize", "upsert entries")
	}
	b.logger.Info("delegated upsert complete", "entries", len(entries), "upserted", upserted)
	return nil
}

func (b *delegatedBackend) Search(ctx context.Context, query string, topK int) ([]Candidate, error) {
	hits, err := b.client.Search(ctx, query, topK)
	if err != nil {
		return nil, errors.Wrap(err, "delegatedBackend", "Search", "remote search")
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		entry := remote.HitEntry(h)
		if entry.ID == "" {
			continue
		}
		candidates = append(candidates, Candidate{Entry: entry, Score: h.Score})
	}
	return candidates, nil
}

func (b *delegatedBackend) Ready(ctx context.Context) bool {
	status, err := b.client.Status(ctx)
	if err != nil {
		b.logger.Warn("delegated service status check failed", "error", err)
		return false
	}
	return status.OK
}

func (b *delegatedBackend) Random(ctx context.Context, minWords int) (*subtitle.Entry, error) {
	hit, err := b.client.Random(ctx, minWords)
	if err != nil {
		return nil, errors.Wrap(err, "delegatedBackend", "Random", "remote random")
	}
	if hit == nil {
		return nil, nil
	}
	entry := remote.HitEntry(*hit)
	if entry.ID == "" {
		return nil, nil
	}
	return &entry, nil
}

func (b *delegatedBackend) ScoreRange() ScoreRange {
	return ScoreRange{Min: 0, Max: 1}
}

func (b *delegatedBackend) Source() string {
	return "delegated"
}
