package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/index"
)

// SearchParams bundles the tuning knobs of the retrieval pipeline. All of
// them come from configuration; none are load-bearing invariants.
type SearchParams struct {
	Weights             domain.FusionWeights
	ConfidenceThreshold float64
	RelaxedThreshold    float64
	SpecificityPenalty  float64
	MaxResults          int
	RerankTopK          int
	RerankTimeout       time.Duration
	BM25K1              float64
	BM25B               float64
}

// HybridSearchUseCase runs the retrieval pipeline:
// expand → per-variant BM25 + vector scoring → fusion → rerank → filter.
// Optional capabilities are checked once at construction; a missing capability
// selects the degraded path, it never fails a request.
type HybridSearchUseCase struct {
	registry *index.Registry
	expander *Expander
	vector   *VectorScorer
	cross    ports.CrossEncoder
	params   SearchParams
}

func NewHybridSearchUseCase(
	registry *index.Registry,
	expander *Expander,
	vector *VectorScorer,
	cross ports.CrossEncoder,
	params SearchParams,
) (*HybridSearchUseCase, error) {
	if err := params.Weights.Validate(); err != nil {
		return nil, err
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 5
	}
	if params.BM25K1 <= 0 {
		params.BM25K1 = index.DefaultK1
	}
	if params.BM25B < 0 || params.BM25B > 1 {
		params.BM25B = index.DefaultB
	}
	return &HybridSearchUseCase{
		registry: registry,
		expander: expander,
		vector:   vector,
		cross:    cross,
		params:   params,
	}, nil
}

// LoadCorpus replaces the corpus index. An empty passage set retires the
// corpus instead of registering an empty index, so later searches fail with
// ErrCorpusNotLoaded rather than returning guaranteed-empty outcomes.
func (uc *HybridSearchUseCase) LoadCorpus(corpusID string, passages []domain.Passage) error {
	if len(passages) == 0 {
		uc.registry.Unload(corpusID)
		return nil
	}
	return uc.registry.Load(corpusID, passages)
}

func (uc *HybridSearchUseCase) UnloadCorpus(corpusID string) {
	uc.registry.Unload(corpusID)
}

func (uc *HybridSearchUseCase) CorpusStats() []domain.CorpusStats {
	return uc.registry.Stats()
}

// Search runs the pipeline for the original query only.
func (uc *HybridSearchUseCase) Search(ctx context.Context, query, corpusID string, opts ports.SearchOptions) (domain.RetrievalOutcome, error) {
	return uc.run(ctx, query, corpusID, opts, false)
}

// SearchMultiQuery expands the query and merges candidates across all
// variants before a single shared fusion/rerank/filter pass.
func (uc *HybridSearchUseCase) SearchMultiQuery(ctx context.Context, query, corpusID string, opts ports.SearchOptions) (domain.RetrievalOutcome, error) {
	return uc.run(ctx, query, corpusID, opts, true)
}

func (uc *HybridSearchUseCase) run(ctx context.Context, query, corpusID string, opts ports.SearchOptions, expand bool) (domain.RetrievalOutcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalOutcome{}, domain.WrapError(domain.ErrInvalidInput, "search: empty query", nil)
	}

	weights := uc.params.Weights
	if opts.Weights != nil {
		if err := opts.Weights.Validate(); err != nil {
			return domain.RetrievalOutcome{}, err
		}
		weights = *opts.Weights
	}
	threshold := uc.params.ConfidenceThreshold
	if opts.Threshold != nil {
		if *opts.Threshold < 0 || *opts.Threshold > 1 {
			return domain.RetrievalOutcome{}, domain.WrapError(domain.ErrInvalidInput, "search: threshold out of [0,1]", nil)
		}
		threshold = *opts.Threshold
	}
	maxResults := uc.params.MaxResults
	if opts.MaxResults > 0 {
		maxResults = opts.MaxResults
	}

	ix, err := uc.registry.Get(corpusID)
	if err != nil {
		return domain.RetrievalOutcome{}, err
	}
	if ix.Len() == 0 {
		return domain.EmptyOutcome(suggestionFor(query)), nil
	}

	variants := []domain.QueryVariant{{Text: query, OriginRank: 0}}
	if expand {
		variants = uc.expander.Expand(ctx, query)
	}
	if err := ctx.Err(); err != nil {
		return domain.RetrievalOutcome{}, fmt.Errorf("search canceled after expansion: %w", err)
	}

	perVariant := uc.scoreVariants(ctx, ix, variants)
	if err := ctx.Err(); err != nil {
		return domain.RetrievalOutcome{}, fmt.Errorf("search canceled after variant scoring: %w", err)
	}

	fused := fuseCandidates(ix, perVariant, weights, uc.params.SpecificityPenalty)
	reranked, rerankSkip := rerankCandidates(ctx, uc.cross, query, fused, uc.params.RerankTopK, weights.Rerank, uc.params.RerankTimeout)
	if err := ctx.Err(); err != nil {
		return domain.RetrievalOutcome{}, fmt.Errorf("search canceled after rerank: %w", err)
	}
	stats := domain.RetrievalStats{VariantCount: len(variants), RerankSkipReason: rerankSkip}

	kept := keepAboveThreshold(reranked, threshold)
	if len(kept) > 0 {
		outcome := domain.ResultsOutcome(toSearchResults(kept, maxResults, false))
		outcome.Stats = stats
		return outcome, nil
	}

	// Relaxed retry: original variant only, relaxed threshold, one result at
	// most, tagged low-confidence. The original variant is always slot 0.
	relaxedFused := fuseCandidates(ix, perVariant[:1], weights, uc.params.SpecificityPenalty)
	relaxedReranked, _ := rerankCandidates(ctx, uc.cross, query, relaxedFused, uc.params.RerankTopK, weights.Rerank, uc.params.RerankTimeout)
	relaxedKept := keepAboveThreshold(relaxedReranked, uc.params.RelaxedThreshold)
	if len(relaxedKept) > 0 {
		outcome := domain.LowConfidenceOutcome(toSearchResults(relaxedKept, 1, true), suggestionFor(query))
		outcome.Stats = stats
		return outcome, nil
	}
	outcome := domain.EmptyOutcome(suggestionFor(query))
	outcome.Stats = stats
	return outcome, nil
}

// scoreVariants runs keyword and vector scoring per variant in parallel. The
// pool is bounded by the variant cap; each worker writes only its own slot.
func (uc *HybridSearchUseCase) scoreVariants(ctx context.Context, ix *index.CorpusIndex, variants []domain.QueryVariant) []variantScores {
	out := make([]variantScores, len(variants))

	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(slot int, v domain.QueryVariant) {
			defer wg.Done()

			terms := index.Tokenize(v.Text)
			hits := ix.Score(terms, uc.params.BM25K1, uc.params.BM25B)

			vec := make(map[int]float64)
			for ordinal := 0; ordinal < ix.Len(); ordinal++ {
				if ctx.Err() != nil {
					break
				}
				score := uc.vector.Score(ctx, v.Text, ix.Passage(ordinal))
				if score > 0 {
					vec[ordinal] = score
				}
			}
			out[slot] = variantScores{variant: v, keyword: hits, vector: vec}
		}(i, variant)
	}
	wg.Wait()
	return out
}

func keepAboveThreshold(fused []fusedCandidate, threshold float64) []fusedCandidate {
	out := make([]fusedCandidate, 0, len(fused))
	for _, fc := range fused {
		if fc.candidate.FinalScore >= threshold {
			out = append(out, fc)
		}
	}
	return out
}

func toSearchResults(fused []fusedCandidate, limit int, lowConfidence bool) []domain.SearchResult {
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	out := make([]domain.SearchResult, 0, len(fused))
	for _, fc := range fused {
		p := fc.candidate.Passage

		metadata := make(map[string]any, len(p.Metadata)+1)
		for k, v := range p.Metadata {
			metadata[k] = v
		}
		if lowConfidence {
			metadata["low_confidence"] = true
		}

		out = append(out, domain.SearchResult{
			Content:      p.Content,
			Source:       p.Source,
			Page:         p.Page,
			Section:      p.Section,
			Confidence:   clamp01(fc.candidate.FinalScore),
			Relevance:    clamp01(fc.base),
			MatchedQuery: fc.candidate.MatchedVariant,
			Metadata:     metadata,
		})
	}
	return out
}

func suggestionFor(query string) string {
	return fmt.Sprintf(
		"No sufficiently relevant passages found for %q. Try a more specific phrasing, for example including a section or article name.",
		query,
	)
}
