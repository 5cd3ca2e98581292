package search

import (
	"sort"
	"strings"

	"github.com/sunhengzhe/easylish/config"
	"github.com/sunhengzhe/easylish/subtitle"
)

// Result is a calibrated, post-processed match.
type Result struct {
	Entry      subtitle.Entry `json:"entry"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
}

// Ranker converts raw backend candidates into final results: base
// confidence from the backend's score range, short-text penalties,
// low-information filtering over an over-fetched pool, dedup by video, and
// truncation to the caller's limit last.
type Ranker struct {
	cfg        config.RankingConfig
	scoreRange ScoreRange
	source     string
}

// NewRanker builds a ranker for one backend's score semantics.
func NewRanker(cfg config.RankingConfig, scoreRange ScoreRange, source string) *Ranker {
	return &Ranker{cfg: cfg, scoreRange: scoreRange, source: source}
}

// PoolSize returns how many candidates to over-fetch for a caller limit, so
// filtering and dedup do not starve the final truncation.
func (r *Ranker) PoolSize(limit int) int {
	factor := r.cfg.OverfetchFactor
	if factor <= 0 {
		factor = 3
	}
	floor := r.cfg.OverfetchFloor
	if floor <= 0 {
		floor = 50
	}
	pool := limit * factor
	if pool < floor {
		pool = floor
	}
	return pool
}

// Process calibrates and post-processes a candidate pool.
func (r *Ranker) Process(query string, candidates []Candidate, limit int) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Entry:      c.Entry,
			Score:      c.Score,
			Confidence: r.confidence(query, c),
			Source:     r.source,
		})
	}

	filtered := r.filterLowInfo(results)
	if len(filtered) > 0 {
		// The filter may empty the pool entirely when the corpus only has
		// short captions; serve the unfiltered pool rather than nothing.
		results = filtered
	}

	results = dedupByVideo(results)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.ID < results[j].Entry.ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// confidence maps a raw score into [0,1] and applies short-text penalties.
// Very short captions spuriously attract high similarity to unrelated short
// queries; a literal substring match escapes the strong penalty.
func (r *Ranker) confidence(query string, c Candidate) float64 {
	conf := r.scoreRange.Normalize(c.Score)

	cleaned := subtitle.CleanedLength(c.Entry.Text)
	shortChars := r.cfg.ShortTextChars
	if shortChars <= 0 {
		shortChars = 2
	}
	mediumChars := r.cfg.MediumTextChars
	if mediumChars <= 0 {
		mediumChars = 4
	}

	switch {
	case cleaned <= shortChars && !containsFold(c.Entry.Text, query):
		penalty := r.cfg.ShortPenalty
		if penalty <= 0 {
			penalty = 0.35
		}
		conf *= penalty
	case cleaned <= mediumChars:
		penalty := r.cfg.MediumPenalty
		if penalty <= 0 {
			penalty = 0.7
		}
		conf *= penalty
	}
	return conf
}

func (r *Ranker) filterLowInfo(results []Result) []Result {
	minTokens := r.cfg.MinTokens
	if minTokens <= 0 {
		minTokens = 3
	}

	kept := make([]Result, 0, len(results))
	for _, res := range results {
		if subtitle.TokenCount(res.Entry.Text) >= minTokens {
			kept = append(kept, res)
		}
	}
	return kept
}

// dedupByVideo keeps the highest-scoring result per video.
func dedupByVideo(results []Result) []Result {
	best := make(map[string]Result, len(results))
	for _, res := range results {
		cur, ok := best[res.Entry.VideoID]
		if !ok || res.Score > cur.Score {
			best[res.Entry.VideoID] = res
		}
	}

	deduped := make([]Result, 0, len(best))
	for _, res := range best {
		deduped = append(deduped, res)
	}
	return deduped
}

func containsFold(text, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}
