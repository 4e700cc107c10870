package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmaslov/passage-search/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// SimilarityScorer scores query/passage pairs with embedding cosine similarity.
// Passage embeddings are cached because the corpus is stable between reloads
// while queries are always fresh.
type SimilarityScorer struct {
	client *Client

	mu    sync.Mutex
	cache map[string][]float32
}

const passageEmbedCacheLimit = 4096

func NewSimilarityScorer(client *Client) *SimilarityScorer {
	return &SimilarityScorer{
		client: client,
		cache:  make(map[string][]float32),
	}
}

func (s *SimilarityScorer) Similarity(ctx context.Context, query, passage string) (float64, error) {
	queryVec, err := s.client.embedOne(ctx, query)
	if err != nil {
		return 0, err
	}
	passageVec, err := s.passageVector(ctx, passage)
	if err != nil {
		return 0, err
	}
	return clampUnit(cosine(queryVec, passageVec)), nil
}

func (s *SimilarityScorer) passageVector(ctx context.Context, passage string) ([]float32, error) {
	s.mu.Lock()
	vec, ok := s.cache[passage]
	s.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := s.client.embedOne(ctx, passage)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if len(s.cache) >= passageEmbedCacheLimit {
		s.cache = make(map[string][]float32)
	}
	s.cache[passage] = vec
	s.mu.Unlock()
	return vec, nil
}

// CrossScorer asks the generation model to judge each query/passage pair
// jointly and return one relevance score per passage.
type CrossScorer struct {
	client *Client
}

func NewCrossScorer(client *Client) *CrossScorer {
	return &CrossScorer{client: client}
}

func (c *CrossScorer) ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	raw, err := c.client.generateJSON(ctx, "rerank", buildPairScorePrompt(query, passages))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank scores: %w", err)
	}
	if len(parsed.Scores) != len(passages) {
		return nil, fmt.Errorf("rerank returned %d scores for %d passages", len(parsed.Scores), len(passages))
	}
	for i := range parsed.Scores {
		parsed.Scores[i] = clampUnit(parsed.Scores[i])
	}
	return parsed.Scores, nil
}

// Paraphraser rewrites a query into alternate phrasings with the same intent.
type Paraphraser struct {
	client *Client
}

func NewParaphraser(client *Client) *Paraphraser {
	return &Paraphraser{client: client}
}

const maxParaphrases = 4

func (p *Paraphraser) Paraphrase(ctx context.Context, query string) ([]string, error) {
	raw, err := p.client.generateJSON(ctx, "paraphrase", buildParaphrasePrompt(query))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Paraphrases []string `json:"paraphrases"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse paraphrases: %w", err)
	}

	out := make([]string, 0, maxParaphrases)
	for _, candidate := range parsed.Paraphrases {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		out = append(out, candidate)
		if len(out) == maxParaphrases {
			break
		}
	}
	return out, nil
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.execute(ctx, "embed", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.execute(ctx, operation, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", request, &response, operation)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, fn(ctx))
	}
	err := c.executor.Execute(ctx, "ollama_"+operation, fn, classifyOllamaError)
	return wrapTemporaryIfNeeded(operation, err)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
