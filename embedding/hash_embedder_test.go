package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedder_Generate(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  int // Expected number of embeddings
	}{
		{
			name:  "empty input",
			texts: []string{},
			want:  0,
		},
		{
			name:  "single text",
			texts: []string{"hello world"},
			want:  1,
		},
		{
			name:  "multiple texts",
			texts: []string{"hello world", "goodbye world", "hello goodbye"},
			want:  3,
		},
		{
			name:  "blank text",
			texts: []string{"   "},
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := NewHashEmbedder(HashConfig{})
			embeddings, err := embedder.Generate(context.Background(), tt.texts, RolePassage)

			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			if len(embeddings) != tt.want {
				t.Errorf("Generate() got %d embeddings, want %d", len(embeddings), tt.want)
			}
		})
	}
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	a := NewHashEmbedder(HashConfig{})
	b := NewHashEmbedder(HashConfig{})

	first, err := a.Generate(context.Background(), []string{"the quick brown fox"}, RolePassage)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := b.Generate(context.Background(), []string{"the quick brown fox"}, RoleQuery)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Identical text gives bit-identical vectors, regardless of role or
	// embedder instance
	if len(first[0]) != len(second[0]) {
		t.Fatalf("dimension mismatch: %d vs %d", len(first[0]), len(second[0]))
	}
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("vectors differ at dimension %d: %v vs %v", i, first[0][i], second[0][i])
		}
	}
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	embedder := NewHashEmbedder(HashConfig{Dimensions: 128})
	embeddings, err := embedder.Generate(context.Background(), []string{"unit norm check"}, RolePassage)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var sumSquares float64
	for _, v := range embeddings[0] {
		sumSquares += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sumSquares)-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sumSquares))
	}
}

func TestHashEmbedder_BlankTextNilVector(t *testing.T) {
	embedder := NewHashEmbedder(HashConfig{})
	embeddings, err := embedder.Generate(context.Background(), []string{"real text", "  ", ""}, RolePassage)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if embeddings[0] == nil {
		t.Error("expected vector for non-blank text")
	}
	if embeddings[1] != nil || embeddings[2] != nil {
		t.Error("expected nil vectors for blank texts")
	}
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	embedder := NewHashEmbedder(HashConfig{})
	embeddings, err := embedder.Generate(context.Background(), []string{
		"good morning world",
		"good morning everyone",
		"quarterly revenue projections",
	}, RolePassage)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	related := CosineSimilarity(embeddings[0], embeddings[1])
	unrelated := CosineSimilarity(embeddings[0], embeddings[2])
	if related <= unrelated {
		t.Errorf("expected overlapping texts to score higher: related=%f unrelated=%f", related, unrelated)
	}
}

func TestHashEmbedder_Dimensions(t *testing.T) {
	if got := NewHashEmbedder(HashConfig{}).Dimensions(); got != 384 {
		t.Errorf("default Dimensions() = %d, want 384", got)
	}
	if got := NewHashEmbedder(HashConfig{Dimensions: 64}).Dimensions(); got != 64 {
		t.Errorf("Dimensions() = %d, want 64", got)
	}
}

func TestHashEmbedder_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	embedder := NewHashEmbedder(HashConfig{})
	if _, err := embedder.Generate(ctx, []string{"text"}, RolePassage); err == nil {
		t.Error("expected error for cancelled context")
	}
}
