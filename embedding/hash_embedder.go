package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder implements pure Go deterministic embeddings via feature
// hashing.
//
// It provides a fallback when the inference service is unavailable. Vectors
// are built by:
//  1. Tokenizing text (lowercase, split on non-alphanumeric)
//  2. Extracting character bigrams from each token
//  3. Hashing tokens and bigrams to fixed dimensions with FNV-1a
//  4. L2 normalizing for cosine similarity compatibility
//
// The embedder holds no mutable state: the same text always produces the
// same vector, across processes and restarts. The role is ignored because
// hashing is symmetric. This is a lexical approach; it will not capture
// semantic similarity the way a neural model does, but overlapping tokens
// and bigrams still score related subtitles above unrelated ones.
type HashEmbedder struct {
	dimensions int
}

// HashConfig configures the hash embedder.
type HashConfig struct {
	// Dimensions is the output embedding dimension (default: 384 to match
	// common neural embedding models)
	Dimensions int
}

// NewHashEmbedder creates a new deterministic feature-hashing embedder.
func NewHashEmbedder(cfg HashConfig) *HashEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	return &HashEmbedder{dimensions: cfg.Dimensions}
}

// Generate creates deterministic embeddings for the given texts.
//
// Texts that are empty after trimming yield a nil vector at their index.
func (h *HashEmbedder) Generate(ctx context.Context, texts []string, _ Role) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if i%100 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		embeddings[i] = h.embed(text)
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

// Model returns the model identifier.
func (h *HashEmbedder) Model() string {
	return fmt.Sprintf("hash-fnv1a-%d", h.dimensions)
}

// Close releases resources (no-op for the hash embedder).
func (h *HashEmbedder) Close() error {
	return nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vector := make([]float32, h.dimensions)

	tokens := tokenize(text)
	for _, token := range tokens {
		// Whole token carries more weight than its bigrams
		vector[h.hashFeature(token)] += 1.0

		runes := []rune(token)
		for j := 0; j+1 < len(runes); j++ {
			bigram := string(runes[j : j+2])
			vector[h.hashFeature("2g:"+bigram)] += 0.5
		}
	}

	l2Normalize(vector)
	return vector
}

// hashFeature maps a feature to a dimension using FNV-1a.
func (h *HashEmbedder) hashFeature(feature string) int {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(feature))
	return int(hash.Sum32() % uint32(h.dimensions))
}

// tokenize splits text into lowercase tokens on non-alphanumeric runes.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			_, _ = current.WriteRune(r)
		} else if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// l2Normalize normalizes vector to unit length in place.
func l2Normalize(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return // Zero vector
	}

	norm := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] /= float32(norm)
	}
}
