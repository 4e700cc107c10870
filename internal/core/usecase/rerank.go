package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dmaslov/passage-search/internal/core/ports"
)

// rerankCandidates re-scores the fused head with the cross-encoder and blends
// the result into the final score. The cross-encoder is a soft dependency: on
// any failure, timeout or malformed response the incoming order passes through
// unchanged. The second return value names why the stage was skipped, empty
// when the blend was applied.
func rerankCandidates(
	ctx context.Context,
	cross ports.CrossEncoder,
	query string,
	fused []fusedCandidate,
	topK int,
	weight float64,
	timeout time.Duration,
) ([]fusedCandidate, string) {
	if cross == nil {
		return fused, "no_encoder"
	}
	if len(fused) == 0 {
		return fused, "no_candidates"
	}
	if weight == 0 {
		return fused, "zero_weight"
	}
	if topK <= 0 || topK > len(fused) {
		topK = len(fused)
	}

	head := make([]fusedCandidate, topK)
	copy(head, fused[:topK])

	passages := make([]string, 0, topK)
	for _, fc := range head {
		passages = append(passages, fc.candidate.Passage.Content)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	scores, err := cross.ScorePairs(callCtx, query, passages)
	if err != nil {
		slog.Warn("stage_degraded", "stage", "rerank", "cause", err)
		return fused, "encoder_error"
	}
	if len(scores) != len(head) {
		slog.Warn("stage_degraded", "stage", "rerank", "cause", "score count mismatch")
		return fused, "score_count_mismatch"
	}

	for i := range head {
		head[i].candidate.RerankScore = scores[i]
		head[i].candidate.FinalScore += weight * scores[i]
		if head[i].candidate.FinalScore < 0 {
			head[i].candidate.FinalScore = 0
		}
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].candidate.FinalScore != head[j].candidate.FinalScore {
			return head[i].candidate.FinalScore > head[j].candidate.FinalScore
		}
		return head[i].ordinal < head[j].ordinal
	})

	if topK == len(fused) {
		return head, ""
	}
	out := make([]fusedCandidate, 0, len(fused))
	out = append(out, head...)
	out = append(out, fused[topK:]...)
	return out, ""
}
