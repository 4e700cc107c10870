package usecase

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/index"
)

func defaultParams() SearchParams {
	return SearchParams{
		Weights:             domain.DefaultFusionWeights(),
		ConfidenceThreshold: 0.1,
		RelaxedThreshold:    0,
		SpecificityPenalty:  0.05,
		MaxResults:          5,
		RerankTopK:          15,
		RerankTimeout:       time.Second,
		BM25K1:              index.DefaultK1,
		BM25B:               index.DefaultB,
	}
}

func newTestEngine(t *testing.T, cross ports.CrossEncoder, params SearchParams, corpus ...string) *HybridSearchUseCase {
	t.Helper()

	registry := index.NewRegistry()
	expander := NewExpander(domain.DefaultExpansionVocabulary(), nil, ExpanderOptions{})
	engine, err := NewHybridSearchUseCase(registry, expander, NewVectorScorer(nil), cross, params)
	if err != nil {
		t.Fatalf("NewHybridSearchUseCase() error = %v", err)
	}

	if len(corpus) > 0 {
		passages := make([]domain.Passage, 0, len(corpus))
		for _, text := range corpus {
			passages = append(passages, domain.Passage{Content: text, Source: "bylaws.pdf"})
		}
		if err := engine.LoadCorpus("bylaws", passages); err != nil {
			t.Fatalf("LoadCorpus() error = %v", err)
		}
	}
	return engine
}

func bylawsCorpus() []string {
	return []string{
		"annual budget approval workflow for the finance committee",
		"board meeting quorum requirements state that quorum requirements are satisfied at half the directors",
		"director election procedures and ballot counting",
		"conflict of interest disclosures for board members",
		"minutes must be distributed after every meeting",
	}
}

func TestSearchRejectsUnknownCorpus(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams())
	_, err := engine.Search(context.Background(), "quorum", "missing", ports.SearchOptions{})
	if !domain.IsKind(err, domain.ErrCorpusNotLoaded) {
		t.Fatalf("expected ErrCorpusNotLoaded, got %v", err)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)
	_, err := engine.Search(context.Background(), "   ", "bylaws", ports.SearchOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchRejectsInvalidWeightOverride(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)
	bad := domain.FusionWeights{Vector: 0.9, Keyword: 0.4}
	_, err := engine.Search(context.Background(), "quorum", "bylaws", ports.SearchOptions{Weights: &bad})
	if !domain.IsKind(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestSearchRanksTermFrequencyBoostFirst(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)

	outcome, err := engine.Search(context.Background(), "quorum requirements", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if outcome.Kind != domain.OutcomeResults || len(outcome.Results) == 0 {
		t.Fatalf("expected results, got %+v", outcome)
	}
	if !strings.Contains(outcome.Results[0].Content, "quorum requirements") {
		t.Fatalf("expected quorum passage first, got %q", outcome.Results[0].Content)
	}
	if outcome.Results[0].MatchedQuery != "quorum requirements" {
		t.Fatalf("expected original query as matched variant, got %q", outcome.Results[0].MatchedQuery)
	}
}

func TestSearchDeterministicAcrossCalls(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)

	first, err := engine.SearchMultiQuery(context.Background(), "board meeting minutes", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchMultiQuery() error = %v", err)
	}
	second, err := engine.SearchMultiQuery(context.Background(), "board meeting minutes", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchMultiQuery() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical calls diverged:\n%+v\n%+v", first, second)
	}
}

func TestSearchRerankDisabledKeepsCandidateSet(t *testing.T) {
	withCross := newTestEngine(t, &fakeCrossEncoder{scores: map[string]float64{}}, defaultParams(), bylawsCorpus()...)
	without := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)

	a, err := withCross.Search(context.Background(), "board meeting", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	b, err := without.Search(context.Background(), "board meeting", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	setA := make(map[string]struct{})
	for _, r := range a.Results {
		setA[r.Content] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, r := range b.Results {
		setB[r.Content] = struct{}{}
	}
	if !reflect.DeepEqual(setA, setB) {
		t.Fatalf("rerank availability changed the candidate set:\n%v\n%v", setA, setB)
	}
}

func TestSearchHighThresholdFallsBackToLowConfidence(t *testing.T) {
	params := defaultParams()
	params.ConfidenceThreshold = 0.9

	engine := newTestEngine(t, nil, params, bylawsCorpus()...)
	outcome, err := engine.Search(context.Background(), "director election", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if outcome.Kind != domain.OutcomeResults {
		t.Fatalf("expected relaxed-retry results, got %+v", outcome)
	}
	if !outcome.LowConfidence || len(outcome.Results) != 1 {
		t.Fatalf("expected exactly one low-confidence result, got %+v", outcome)
	}
	if flagged, _ := outcome.Results[0].Metadata["low_confidence"].(bool); !flagged {
		t.Fatalf("expected low_confidence metadata flag, got %v", outcome.Results[0].Metadata)
	}
	if outcome.Suggestion == "" {
		t.Fatalf("low-confidence outcome must carry a suggestion")
	}
}

func TestSearchNeverReturnsBareEmptyForNonEmptyCorpus(t *testing.T) {
	params := defaultParams()
	params.ConfidenceThreshold = 0.9

	engine := newTestEngine(t, nil, params, bylawsCorpus()...)
	outcome, err := engine.Search(context.Background(), "zzz qqq xxx", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	switch outcome.Kind {
	case domain.OutcomeResults:
		if len(outcome.Results) == 0 {
			t.Fatalf("bare empty result list: %+v", outcome)
		}
	case domain.OutcomeEmptyWithSuggestion:
		if outcome.Suggestion == "" {
			t.Fatalf("empty outcome without suggestion: %+v", outcome)
		}
	default:
		t.Fatalf("unexpected outcome kind %q", outcome.Kind)
	}
}

func TestSearchMultiQueryFindsSynonymOnlyMatches(t *testing.T) {
	corpus := append(bylawsCorpus(), "amazon web services access controls for finance data")
	engine := newTestEngine(t, nil, defaultParams(), corpus...)

	outcome, err := engine.SearchMultiQuery(context.Background(), "aws security rules", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchMultiQuery() error = %v", err)
	}

	found := false
	for _, r := range outcome.Results {
		if strings.Contains(r.Content, "amazon web services") {
			found = true
			if r.MatchedQuery == "" {
				t.Fatalf("expected matched variant recorded, got %+v", r)
			}
		}
	}
	if !found {
		t.Fatalf("synonym expansion should surface the amazon web services passage, got %+v", outcome.Results)
	}
}

func TestSearchMaxResultsCapsOutput(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)
	outcome, err := engine.Search(context.Background(), "board", "bylaws", ports.SearchOptions{MaxResults: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(outcome.Results) > 1 {
		t.Fatalf("expected at most 1 result, got %d", len(outcome.Results))
	}
}

func TestSearchOutcomeCarriesPipelineStats(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)

	multi, err := engine.SearchMultiQuery(context.Background(), "aws security rules", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchMultiQuery() error = %v", err)
	}
	if multi.Stats.VariantCount < 2 {
		t.Fatalf("expected expanded variants counted, got %d", multi.Stats.VariantCount)
	}
	if multi.Stats.RerankSkipReason != "no_encoder" {
		t.Fatalf("expected no_encoder skip reason without a cross-encoder, got %q", multi.Stats.RerankSkipReason)
	}

	single, err := engine.Search(context.Background(), "quorum requirements", "bylaws", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if single.Stats.VariantCount != 1 {
		t.Fatalf("single-variant search must count exactly 1, got %d", single.Stats.VariantCount)
	}
}

func TestLoadCorpusWithNoPassagesUnloads(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)

	if err := engine.LoadCorpus("bylaws", nil); err != nil {
		t.Fatalf("LoadCorpus() error = %v", err)
	}
	_, err := engine.Search(context.Background(), "quorum", "bylaws", ports.SearchOptions{})
	if !domain.IsKind(err, domain.ErrCorpusNotLoaded) {
		t.Fatalf("expected ErrCorpusNotLoaded after an empty reload, got %v", err)
	}
}

func TestSearchHonorsCancellation(t *testing.T) {
	engine := newTestEngine(t, nil, defaultParams(), bylawsCorpus()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Search(ctx, "quorum", "bylaws", ports.SearchOptions{})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
