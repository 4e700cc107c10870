package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75

	// idf floor keeps very common terms from zeroing out entirely.
	minIDF = 0.01
)

// KeywordHit is one BM25 match: the passage ordinal inside the corpus and its
// accumulated score. Only passages with at least one overlapping term appear.
type KeywordHit struct {
	Ordinal int
	Score   float64
}

// CorpusIndex holds the precomputed BM25 tables for one corpus snapshot. It is
// immutable after Build and safe for unbounded concurrent readers; reloading a
// corpus builds a fresh index and swaps it in the registry.
type CorpusIndex struct {
	corpusID string
	passages []domain.Passage

	termFreq []map[string]int
	docLen   []int
	avgLen   float64
	docFreq  map[string]int
}

// Build precomputes term-frequency, length and document-frequency tables for
// the passage set. Cost is linear in total passage length.
func Build(corpusID string, passages []domain.Passage) *CorpusIndex {
	ix := &CorpusIndex{
		corpusID: corpusID,
		passages: passages,
		termFreq: make([]map[string]int, len(passages)),
		docLen:   make([]int, len(passages)),
		docFreq:  make(map[string]int, len(passages)*8),
	}

	totalLen := 0
	for i, p := range passages {
		tokens := Tokenize(p.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		ix.termFreq[i] = tf
		ix.docLen[i] = len(tokens)
		totalLen += len(tokens)

		for term := range tf {
			ix.docFreq[term]++
		}
	}
	if len(passages) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(passages))
	}
	return ix
}

// Score ranks passages against the query terms with BM25. Results are sorted
// by score descending; ties keep original corpus order so repeated calls are
// byte-identical. Passages with no overlapping term are not emitted.
func (ix *CorpusIndex) Score(terms []string, k1, b float64) []KeywordHit {
	if len(ix.passages) == 0 || len(terms) == 0 {
		return nil
	}
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}

	n := float64(len(ix.passages))
	scores := make([]float64, len(ix.passages))
	matched := make([]bool, len(ix.passages))

	for _, term := range terms {
		df, ok := ix.docFreq[term]
		if !ok {
			continue
		}
		idf := (n - float64(df) + 0.5) / (float64(df) + 0.5)
		if idf < minIDF {
			idf = minIDF
		}

		for i := range ix.passages {
			tf, ok := ix.termFreq[i][term]
			if !ok {
				continue
			}
			lengthNorm := 1 - b + b*(float64(ix.docLen[i])/ix.avgLen)
			tfComponent := (float64(tf) * (k1 + 1)) / (float64(tf) + k1*lengthNorm)
			scores[i] += idf * tfComponent
			matched[i] = true
		}
	}

	hits := make([]KeywordHit, 0, len(ix.passages))
	for i := range scores {
		if !matched[i] || math.IsNaN(scores[i]) {
			continue
		}
		hits = append(hits, KeywordHit{Ordinal: i, Score: scores[i]})
	}
	sort.SliceStable(hits, func(a, c int) bool { return hits[a].Score > hits[c].Score })
	return hits
}

func (ix *CorpusIndex) CorpusID() string {
	return ix.corpusID
}

func (ix *CorpusIndex) Len() int {
	return len(ix.passages)
}

// Passage returns the passage at the given corpus ordinal.
func (ix *CorpusIndex) Passage(ordinal int) domain.Passage {
	return ix.passages[ordinal]
}

func (ix *CorpusIndex) Stats() domain.CorpusStats {
	return domain.CorpusStats{
		CorpusID:       ix.corpusID,
		PassageCount:   len(ix.passages),
		AvgPassageLen:  ix.avgLen,
		VocabularySize: len(ix.docFreq),
	}
}

// Tokenize lower-cases and splits on non-alphanumeric runes. The same
// tokenizer feeds indexing, query scoring and the Jaccard fallback so scores
// stay comparable.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
