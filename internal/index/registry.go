package index

import (
	"sort"
	"sync"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

// Registry maps corpus ids to immutable index snapshots. Load builds a new
// index and swaps the pointer; in-flight readers keep scoring against the
// snapshot they already hold.
type Registry struct {
	mu      sync.RWMutex
	corpora map[string]*CorpusIndex
}

func NewRegistry() *Registry {
	return &Registry{corpora: make(map[string]*CorpusIndex)}
}

// Load replaces the index for corpusID. Idempotent, last-write-wins.
func (r *Registry) Load(corpusID string, passages []domain.Passage) error {
	if corpusID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "load corpus", nil)
	}
	for _, p := range passages {
		if p.Content == "" {
			return domain.WrapError(domain.ErrInvalidInput, "load corpus: empty passage content", nil)
		}
	}

	ix := Build(corpusID, passages)
	r.mu.Lock()
	r.corpora[corpusID] = ix
	r.mu.Unlock()
	return nil
}

func (r *Registry) Unload(corpusID string) {
	r.mu.Lock()
	delete(r.corpora, corpusID)
	r.mu.Unlock()
}

// Get returns the current snapshot for corpusID.
func (r *Registry) Get(corpusID string) (*CorpusIndex, error) {
	r.mu.RLock()
	ix, ok := r.corpora[corpusID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrCorpusNotLoaded, "get corpus "+corpusID, nil)
	}
	return ix, nil
}

func (r *Registry) Stats() []domain.CorpusStats {
	r.mu.RLock()
	out := make([]domain.CorpusStats, 0, len(r.corpora))
	for _, ix := range r.corpora {
		out = append(out, ix.Stats())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CorpusID < out[j].CorpusID })
	return out
}
