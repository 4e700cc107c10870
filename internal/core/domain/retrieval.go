package domain

// Passage is one chunked unit of document text. Passages are produced by the
// external ingestion subsystem and are read-only inside the engine.
type Passage struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Page     string         `json:"page,omitempty"`
	Section  string         `json:"section,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryVariant is one phrasing of the user query. OriginRank 0 is always the
// original query; higher ranks are progressively more speculative expansions.
type QueryVariant struct {
	Text       string `json:"text"`
	OriginRank int    `json:"origin_rank"`
}

// ScoredCandidate accumulates per-passage scores while a request moves through
// the fusion and rerank stages. One candidate exists per unique passage.
type ScoredCandidate struct {
	Passage        Passage `json:"passage"`
	KeywordScore   float64 `json:"keyword_score"`
	VectorScore    float64 `json:"vector_score"`
	RerankScore    float64 `json:"rerank_score"`
	FinalScore     float64 `json:"final_score"`
	MatchedVariant string  `json:"matched_variant"`
}

// SearchResult is the immutable per-passage output of a completed retrieval.
type SearchResult struct {
	Content      string         `json:"content"`
	Source       string         `json:"source"`
	Page         string         `json:"page,omitempty"`
	Section      string         `json:"section,omitempty"`
	Confidence   float64        `json:"confidence_score"`
	Relevance    float64        `json:"relevance_score"`
	MatchedQuery string         `json:"matched_query"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type OutcomeKind string

const (
	OutcomeResults             OutcomeKind = "results"
	OutcomeEmptyWithSuggestion OutcomeKind = "empty_with_suggestion"
)

// RetrievalStats carries per-request pipeline counters for observability.
// It never appears on the wire.
type RetrievalStats struct {
	VariantCount     int    `json:"-"`
	RerankSkipReason string `json:"-"`
}

// RetrievalOutcome is the single shape every search returns. Hard failures
// (corpus missing, bad configuration) travel as errors instead.
type RetrievalOutcome struct {
	Kind          OutcomeKind    `json:"kind"`
	Results       []SearchResult `json:"results,omitempty"`
	Suggestion    string         `json:"suggestion,omitempty"`
	LowConfidence bool           `json:"low_confidence,omitempty"`
	Stats         RetrievalStats `json:"-"`
}

func ResultsOutcome(results []SearchResult) RetrievalOutcome {
	return RetrievalOutcome{Kind: OutcomeResults, Results: results}
}

func LowConfidenceOutcome(results []SearchResult, suggestion string) RetrievalOutcome {
	return RetrievalOutcome{
		Kind:          OutcomeResults,
		Results:       results,
		Suggestion:    suggestion,
		LowConfidence: true,
	}
}

func EmptyOutcome(suggestion string) RetrievalOutcome {
	return RetrievalOutcome{Kind: OutcomeEmptyWithSuggestion, Suggestion: suggestion}
}

// FusionWeights combines the keyword and vector signals. Vector and Keyword
// must sum to 1.0; Rerank blends the cross-encoder score on top of the fused
// score when the capability is available.
type FusionWeights struct {
	Vector  float64 `json:"vector"`
	Keyword float64 `json:"keyword"`
	Rerank  float64 `json:"rerank"`
}

const weightSumTolerance = 1e-9

func (w FusionWeights) Validate() error {
	if w.Vector < 0 || w.Keyword < 0 || w.Rerank < 0 {
		return WrapError(ErrInvalidWeights, "validate fusion weights", nil)
	}
	sum := w.Vector + w.Keyword
	if sum < 1.0-weightSumTolerance || sum > 1.0+weightSumTolerance {
		return WrapError(ErrInvalidWeights, "validate fusion weights", nil)
	}
	return nil
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Vector: 0.6, Keyword: 0.4, Rerank: 0.3}
}

// CorpusStats summarizes one loaded corpus index.
type CorpusStats struct {
	CorpusID       string  `json:"corpus_id"`
	PassageCount   int     `json:"passage_count"`
	AvgPassageLen  float64 `json:"avg_passage_len"`
	VocabularySize int     `json:"vocabulary_size"`
}
