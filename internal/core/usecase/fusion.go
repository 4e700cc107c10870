package usecase

import (
	"hash/fnv"
	"sort"

	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/index"
)

const fingerprintPrefixLen = 500

// variantScores carries the raw per-variant signals into fusion: BM25 hits and
// per-ordinal vector scores for one query variant.
type variantScores struct {
	variant domain.QueryVariant
	keyword []index.KeywordHit
	vector  map[int]float64
}

// fusedCandidate keeps the corpus ordinal next to the public candidate so
// later stages can tie-break deterministically.
type fusedCandidate struct {
	ordinal    int
	originRank int
	base       float64
	candidate  domain.ScoredCandidate
}

// fuseCandidates merges all per-variant signals into one candidate per unique
// passage and assigns the weighted base score.
//
// Keyword scores are normalized by the global maximum across every variant so
// the fused score stays inside [0,1]. Identical passages retrieved via
// different variants merge by content fingerprint; the higher keyword and the
// higher vector score each survive the merge. Later (less specific) variants
// pay a penalty proportional to their origin rank, floored at zero.
func fuseCandidates(ix *index.CorpusIndex, perVariant []variantScores, weights domain.FusionWeights, penalty float64) []fusedCandidate {
	maxKeyword := 0.0
	for _, vs := range perVariant {
		for _, hit := range vs.keyword {
			if hit.Score > maxKeyword {
				maxKeyword = hit.Score
			}
		}
	}

	acc := make(map[uint64]*fusedCandidate)
	order := make([]uint64, 0, 16)

	get := func(ordinal, originRank int, variantText string) *fusedCandidate {
		passage := ix.Passage(ordinal)
		key := passageFingerprint(passage.Content)
		fc, ok := acc[key]
		if !ok {
			fc = &fusedCandidate{
				ordinal:    ordinal,
				originRank: originRank,
				candidate: domain.ScoredCandidate{
					Passage:        passage,
					MatchedVariant: variantText,
				},
			}
			acc[key] = fc
			order = append(order, key)
			return fc
		}
		// keep the strongest evidence: the earliest variant sets the penalty,
		// the lowest ordinal settles ties
		if originRank < fc.originRank {
			fc.originRank = originRank
		}
		if ordinal < fc.ordinal {
			fc.ordinal = ordinal
		}
		return fc
	}

	for _, vs := range perVariant {
		for _, hit := range vs.keyword {
			normalized := 0.0
			if maxKeyword > 0 {
				normalized = hit.Score / maxKeyword
			}
			fc := get(hit.Ordinal, vs.variant.OriginRank, vs.variant.Text)
			if normalized > fc.candidate.KeywordScore {
				fc.candidate.KeywordScore = normalized
				fc.candidate.MatchedVariant = vs.variant.Text
			}
		}
		for ordinal, score := range vs.vector {
			fc := get(ordinal, vs.variant.OriginRank, vs.variant.Text)
			if score > fc.candidate.VectorScore {
				fc.candidate.VectorScore = score
			}
		}
	}

	out := make([]fusedCandidate, 0, len(acc))
	for _, key := range order {
		fc := acc[key]
		base := weights.Vector*fc.candidate.VectorScore + weights.Keyword*fc.candidate.KeywordScore
		base -= penalty * float64(fc.originRank)
		if base < 0 {
			base = 0
		}
		fc.base = base
		fc.candidate.FinalScore = base
		out = append(out, *fc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].candidate.FinalScore != out[j].candidate.FinalScore {
			return out[i].candidate.FinalScore > out[j].candidate.FinalScore
		}
		return out[i].ordinal < out[j].ordinal
	})
	return out
}

// passageFingerprint hashes the leading slice of passage content so identical
// chunks indexed under different ordinals collapse into one candidate.
func passageFingerprint(content string) uint64 {
	if len(content) > fingerprintPrefixLen {
		content = content[:fingerprintPrefixLen]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return h.Sum64()
}
