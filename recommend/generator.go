package recommend

import (
	"context"
	"math"
)

// Generator produces and filters candidates for one strategy. Generators are
// independent: they share no mutable state and may run concurrently.
type Generator interface {
	Name() string
	Generate(ctx context.Context, userID, contextType string, metadata map[string]string) ([]Candidate, error)
	Filter(ctx context.Context, candidates []Candidate, userID, contextType string, metadata map[string]string) ([]Candidate, error)
}

// cosineSimilarity computes the cosine of two sparse vectors keyed by
// feature name. Disjoint or empty vectors score zero.
func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
