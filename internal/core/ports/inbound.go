package ports

import (
	"context"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

// SearchOptions carries per-request knobs. Zero values fall back to the
// engine's configured defaults; explicit overrides are validated per request.
type SearchOptions struct {
	MaxResults int
	Weights    *domain.FusionWeights
	Threshold  *float64
}

// SearchEngine is the inbound contract for hybrid passage retrieval.
type SearchEngine interface {
	// Search runs the pipeline for the original query only.
	Search(ctx context.Context, query, corpusID string, opts SearchOptions) (domain.RetrievalOutcome, error)
	// SearchMultiQuery expands the query first and merges candidates across
	// all variants before one shared fusion/rerank/filter pass.
	SearchMultiQuery(ctx context.Context, query, corpusID string, opts SearchOptions) (domain.RetrievalOutcome, error)
}

// CorpusManager owns corpus index lifecycle: load (create or replace), unload,
// and read-only stats. LoadCorpus is idempotent and last-write-wins.
type CorpusManager interface {
	LoadCorpus(corpusID string, passages []domain.Passage) error
	UnloadCorpus(corpusID string)
	CorpusStats() []domain.CorpusStats
}
