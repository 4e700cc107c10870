package usecase

import (
	"context"
	"log/slog"

	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/index"
)

// VectorScorer produces a semantic similarity score in [0,1] per passage.
// Without a configured provider it degrades to Jaccard similarity over
// lower-cased token sets, which is weaker but deterministic and never reports
// a uniform zero for overlapping texts.
type VectorScorer struct {
	provider ports.SimilarityProvider
}

func NewVectorScorer(provider ports.SimilarityProvider) *VectorScorer {
	return &VectorScorer{provider: provider}
}

// Score never fails: provider errors degrade to the lexical proxy for that
// call only.
func (s *VectorScorer) Score(ctx context.Context, query string, passage domain.Passage) float64 {
	if s.provider == nil {
		return jaccardSimilarity(query, passage.Content)
	}

	score, err := s.provider.Similarity(ctx, query, passage.Content)
	if err != nil {
		slog.Warn("stage_degraded", "stage", "vector", "cause", err)
		return jaccardSimilarity(query, passage.Content)
	}
	return clamp01(score)
}

func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	tokens := index.Tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		out[tok] = struct{}{}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
