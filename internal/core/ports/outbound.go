package ports

import (
	"context"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

// SimilarityProvider scores semantic similarity between a query and a passage
// in [0,1]. The capability is optional; a nil provider selects the lexical
// Jaccard fallback at construction time.
type SimilarityProvider interface {
	Similarity(ctx context.Context, query, passage string) (float64, error)
}

// CrossEncoder jointly scores (query, passage) pairs for precision reranking.
// Optional and soft: any failure skips the rerank stage for that request.
type CrossEncoder interface {
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
}

// QueryParaphraser generates alternate phrasings of a query. Optional; failures
// and timeouts are skipped silently during expansion.
type QueryParaphraser interface {
	Paraphrase(ctx context.Context, query string) ([]string, error)
}

// PassageSource reads chunked passages written by the external ingestion
// subsystem, keyed by corpus id.
type PassageSource interface {
	ListByCorpus(ctx context.Context, corpusID string) ([]domain.Passage, error)
	ListCorpusIDs(ctx context.Context) ([]string, error)
}

// CorpusEventQueue carries corpus update notifications between the ingestion
// side and the index-rebuilding worker.
type CorpusEventQueue interface {
	PublishCorpusUpdated(ctx context.Context, corpusID string) error
	SubscribeCorpusUpdated(ctx context.Context, handler func(context.Context, string) error) error
}
