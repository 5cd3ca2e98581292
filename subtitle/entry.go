// Package subtitle defines the subtitle entry record and the text
// normalization rules shared by every retrieval backend.
package subtitle

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Entry is one timed line of subtitle text belonging to a specific
// video/episode/sequence position.
//
// Entries are created once by the ingestion collaborator (which owns SRT
// parsing and file-naming conventions) and are read-only afterwards. The
// engine never mutates an Entry; it only embeds, indexes, and returns them.
type Entry struct {
	// ID is the stable identifier derived from source, episode, and
	// sequence position. See EntryID.
	ID string `json:"id"`

	// VideoID identifies the source video the line belongs to.
	VideoID string `json:"video_id"`

	// Episode is the episode number within the source, 1-based.
	Episode int `json:"episode"`

	// Sequence is the line's position within its subtitle file, 1-based.
	Sequence int `json:"sequence"`

	// StartMS and EndMS bound the line's on-screen interval in
	// milliseconds from the start of the video.
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`

	// Text is the original line as it appeared in the subtitle file.
	Text string `json:"text"`

	// NormalizedText is Text passed through Normalize. It is what gets
	// embedded and what the post-processing heuristics inspect.
	NormalizedText string `json:"normalized_text"`
}

// EntryID builds the stable entry identifier for a video/episode/sequence
// triple. The format is shared with the ingestion collaborator and the
// delegated retrieval service, so it must never change shape.
func EntryID(videoID string, episode, sequence int) string {
	return fmt.Sprintf("%s_%d_%d", videoID, episode, sequence)
}

// Duration returns the on-screen duration of the line.
func (e Entry) Duration() time.Duration {
	if e.EndMS <= e.StartMS {
		return 0
	}
	return time.Duration(e.EndMS-e.StartMS) * time.Millisecond
}

// EmbeddingText returns the text to embed for this entry: the normalized
// form when non-empty, otherwise the raw text.
func (e Entry) EmbeddingText() string {
	if strings.TrimSpace(e.NormalizedText) != "" {
		return e.NormalizedText
	}
	return e.Text
}

// Normalize lowercases text, replaces every rune that is not a Unicode
// letter, number, or whitespace with a space, and collapses whitespace runs.
//
// The rule intentionally preserves non-Latin scripts (CJK, Cyrillic, ...)
// so cross-lingual entries normalize without information loss.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true // Swallow leading whitespace
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// CleanedLength counts the Unicode letters and digits in text, ignoring
// everything else. This is the length measure used by the short-text
// confidence penalty.
func CleanedLength(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			n++
		}
	}
	return n
}

// TokenCount normalizes text and counts its whitespace-delimited tokens.
//
// For languages without word boundaries this undercounts (a CJK phrase is a
// single token); the hash embedder's character bigrams compensate on the
// similarity side, and callers applying quality gates should treat the
// count as a lower bound.
func TokenCount(text string) int {
	normalized := Normalize(text)
	if normalized == "" {
		return 0
	}
	return len(strings.Fields(normalized))
}
