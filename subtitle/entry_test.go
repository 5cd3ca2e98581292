package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryID(t *testing.T) {
	assert.Equal(t, "friends_2_14", EntryID("friends", 2, 14))
	assert.Equal(t, "m_1_1", EntryID("m", 1, 1))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Good Morning", "good morning"},
		{"strips punctuation", "Hello, world!", "hello world"},
		{"collapses whitespace", "a   b\t\nc", "a b c"},
		{"keeps digits", "Route 66", "route 66"},
		{"keeps cjk", "早上好！世界", "早上好 世界"},
		{"punctuation only", "?!...", ""},
		{"empty", "", ""},
		{"trims edges", "  ok  ", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCleanedLength(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"hi", 2},
		{"h-i!", 2},
		{"hello there", 10},
		{"早上好", 3},
		{"...", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanedLength(tt.in), "CleanedLength(%q)", tt.in)
	}
}

func TestTokenCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"ok", 1},
		{"good morning", 2},
		{"good morning, sunshine!", 3},
		{"", 0},
		{"?!", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TokenCount(tt.in), "TokenCount(%q)", tt.in)
	}
}

func TestEntryDuration(t *testing.T) {
	e := Entry{StartMS: 1000, EndMS: 3500}
	assert.Equal(t, 2500*time.Millisecond, e.Duration())

	// End before start never yields a negative duration.
	e = Entry{StartMS: 3500, EndMS: 1000}
	assert.Equal(t, time.Duration(0), e.Duration())
}

func TestEmbeddingText(t *testing.T) {
	e := Entry{Text: "Hello, World!", NormalizedText: "hello world"}
	assert.Equal(t, "hello world", e.EmbeddingText())

	// Normalization of punctuation-only text is empty; fall back to raw.
	e = Entry{Text: "?!", NormalizedText: ""}
	assert.Equal(t, "?!", e.EmbeddingText())
}
