package embedding

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
//
// Returns a value between -1 and 1, where:
//   - 1 means vectors are identical
//   - 0 means vectors are orthogonal (unrelated)
//   - -1 means vectors are opposite
//
// Mismatched lengths score 0. A zero-norm operand has its norm substituted
// with 1, so the result is 0 rather than NaN or Inf.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct float64
	var magnitudeA float64
	var magnitudeB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		magnitudeA += float64(a[i]) * float64(a[i])
		magnitudeB += float64(b[i]) * float64(b[i])
	}

	normA := math.Sqrt(magnitudeA)
	normB := math.Sqrt(magnitudeB)
	if normA == 0 {
		normA = 1
	}
	if normB == 0 {
		normB = 1
	}

	return dotProduct / (normA * normB)
}
