package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/index"
)

const (
	maxSynonymsPerTerm = 4
	categoryMatchFloor = 2
	defaultMaxVariants = 8
	defaultParaTimeout = 5 * time.Second
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "be": {},
	"of": {}, "in": {}, "on": {}, "for": {}, "to": {}, "and": {}, "or": {},
	"what": {}, "which": {}, "who": {}, "how": {}, "when": {}, "where": {},
	"do": {}, "does": {}, "can": {}, "about": {}, "me": {}, "my": {},
	"tell": {}, "please": {}, "with": {}, "this": {}, "that": {},
}

var vaguePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:all|any)\s+information\s+(?:about|on|regarding)\s+(.+)$`),
	regexp.MustCompile(`(?i)^everything\s+(?:about|on|regarding)\s+(.+)$`),
	regexp.MustCompile(`(?i)^tell\s+me\s+(?:all\s+)?about\s+(.+)$`),
}

var categoryScopes = map[string]string{
	"legal":      "provisions and exceptions",
	"technical":  "specification and configuration",
	"procedural": "step by step procedure",
}

// Expander turns one query into a bounded, ordered list of variants. The
// original query is always first; later variants are less specific and carry a
// ranking penalty during fusion.
type Expander struct {
	vocab       domain.ExpansionVocabulary
	paraphraser ports.QueryParaphraser
	limiter     *rate.Limiter
	maxVariants int
	timeout     time.Duration
}

type ExpanderOptions struct {
	MaxVariants       int
	ParaphraseTimeout time.Duration
	ParaphraseRPS     float64
}

func NewExpander(vocab domain.ExpansionVocabulary, paraphraser ports.QueryParaphraser, opts ExpanderOptions) *Expander {
	maxVariants := opts.MaxVariants
	if maxVariants <= 0 {
		maxVariants = defaultMaxVariants
	}
	timeout := opts.ParaphraseTimeout
	if timeout <= 0 {
		timeout = defaultParaTimeout
	}

	var limiter *rate.Limiter
	if paraphraser != nil {
		rps := opts.ParaphraseRPS
		if rps <= 0 {
			rps = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &Expander{
		vocab:       vocab,
		paraphraser: paraphraser,
		limiter:     limiter,
		maxVariants: maxVariants,
		timeout:     timeout,
	}
}

// Expand produces the variant list for a query. Every step is additive; the
// paraphrase step is optional and skipped silently on failure or timeout.
func (e *Expander) Expand(ctx context.Context, query string) []domain.QueryVariant {
	query = strings.TrimSpace(query)

	seen := make(map[string]struct{})
	variants := make([]domain.QueryVariant, 0, e.maxVariants)
	add := func(text string, rank int) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, domain.QueryVariant{Text: text, OriginRank: rank})
	}

	add(query, 0)

	if scope, ok := categoryScopes[e.Classify(query)]; ok {
		add(query+" "+scope, 1)
	}

	for _, sub := range e.synonymVariants(query) {
		add(sub, 2)
	}

	for _, scoped := range e.vagueVariants(query) {
		add(scoped, 3)
	}

	if e.paraphraser != nil && len(variants) < e.maxVariants {
		for _, p := range e.paraphrases(ctx, query) {
			add(p, 4)
		}
	}

	if len(variants) > e.maxVariants {
		variants = variants[:e.maxVariants]
	}
	return variants
}

// Classify buckets the query by counting category keyword hits. A category
// needs at least two matches to win, otherwise the query is general.
func (e *Expander) Classify(query string) string {
	terms := significantTerms(query)
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}

	best := "general"
	bestHits := 0
	for _, category := range sortedCategories(e.vocab.Categories) {
		hits := 0
		for _, kw := range e.vocab.Categories[category] {
			if _, ok := termSet[kw]; ok {
				hits++
			}
		}
		if hits >= categoryMatchFloor && hits > bestHits {
			best = category
			bestHits = hits
		}
	}
	return best
}

func (e *Expander) synonymVariants(query string) []string {
	lowered := strings.ToLower(query)
	out := make([]string, 0, 4)
	for _, term := range significantTerms(query) {
		phrases, ok := e.vocab.Synonyms[term]
		if !ok {
			continue
		}
		// Whole tokens only: "policy" must not rewrite "policyholder".
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		limit := len(phrases)
		if limit > maxSynonymsPerTerm {
			limit = maxSynonymsPerTerm
		}
		for _, phrase := range phrases[:limit] {
			out = append(out, pattern.ReplaceAllString(lowered, phrase))
		}
	}
	return out
}

func (e *Expander) vagueVariants(query string) []string {
	for _, pattern := range vaguePatterns {
		match := pattern.FindStringSubmatch(query)
		if match == nil {
			continue
		}
		topic := strings.TrimSpace(match[1])
		out := make([]string, 0, len(e.vocab.VagueScopes))
		for _, scope := range e.vocab.VagueScopes {
			out = append(out, topic+" "+scope)
		}
		return out
	}
	return nil
}

func (e *Expander) paraphrases(ctx context.Context, query string) []string {
	if e.limiter != nil && !e.limiter.Allow() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.paraphraser.Paraphrase(callCtx, query)
	if err != nil {
		slog.Warn("stage_degraded", "stage", "expand", "cause", err)
		return nil
	}
	return out
}

func significantTerms(query string) []string {
	tokens := index.Tokenize(query)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func sortedCategories(categories map[string][]string) []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	// deterministic classification when two categories tie
	sort.Strings(names)
	return names
}
