package database

import "math"

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - max(-1, min(1, similarity))
}

// centered subtracts the mean from every component. The cosine similarity of two
// centered vectors is their Pearson correlation. Returns nil for constant vectors.
func centered(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	var mean float64
	for _, x := range v {
		mean += float64(x)
	}
	mean /= float64(len(v))

	out := make([]float32, len(v))
	var norm float64
	for i, x := range v {
		d := float64(x) - mean
		out[i] = float32(d)
		norm += d * d
	}
	if norm == 0 {
		return nil
	}
	return out
}
