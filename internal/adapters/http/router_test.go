package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmaslov/passage-search/internal/config"
	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/usecase"
	"github.com/dmaslov/passage-search/internal/index"
	"github.com/dmaslov/passage-search/internal/observability/metrics"
)

func newTestHandler(t *testing.T, cfg config.Config) http.Handler {
	return newTestHandlerWithMetrics(t, cfg, nil)
}

func newTestHandlerWithMetrics(t *testing.T, cfg config.Config, serverMetrics *metrics.HTTPServerMetrics) http.Handler {
	t.Helper()

	registry := index.NewRegistry()
	expander := usecase.NewExpander(domain.DefaultExpansionVocabulary(), nil, usecase.ExpanderOptions{})
	engine, err := usecase.NewHybridSearchUseCase(registry, expander, usecase.NewVectorScorer(nil), nil, usecase.SearchParams{
		Weights:             domain.DefaultFusionWeights(),
		ConfidenceThreshold: 0.1,
		SpecificityPenalty:  0.05,
		MaxResults:          5,
		RerankTopK:          15,
		RerankTimeout:       time.Second,
		BM25K1:              index.DefaultK1,
		BM25B:               index.DefaultB,
	})
	if err != nil {
		t.Fatalf("NewHybridSearchUseCase() error = %v", err)
	}

	if err := engine.LoadCorpus("bylaws", []domain.Passage{
		{Content: "board meeting quorum requirements are half the directors", Source: "bylaws.pdf"},
		{Content: "director election procedures and ballot counting", Source: "bylaws.pdf"},
	}); err != nil {
		t.Fatalf("LoadCorpus() error = %v", err)
	}

	return NewRouter(engine, engine, nil, serverMetrics, cfg).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestSearchEndpointReturnsResults(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := postJSON(t, handler, "/v1/search", map[string]any{
		"query":     "quorum requirements",
		"corpus_id": "bylaws",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var outcome domain.RetrievalOutcome
	if err := json.NewDecoder(res.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Kind != domain.OutcomeResults || len(outcome.Results) == 0 {
		t.Fatalf("expected results outcome, got %+v", outcome)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestSearchEndpointRejectsMissingQuery(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := postJSON(t, handler, "/v1/search", map[string]any{"corpus_id": "bylaws"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchEndpointMapsUnknownCorpusTo404(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := postJSON(t, handler, "/v1/search", map[string]any{
		"query":     "quorum",
		"corpus_id": "missing",
	})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.Code, res.Body.String())
	}
}

func TestSearchEndpointMapsInvalidWeightsTo400(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := postJSON(t, handler, "/v1/search", map[string]any{
		"query":     "quorum",
		"corpus_id": "bylaws",
		"weights":   map[string]float64{"vector": 0.9, "keyword": 0.4},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad weights, got %d: %s", res.Code, res.Body.String())
	}
}

func TestMultiSearchEndpointExpandsQuery(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := postJSON(t, handler, "/v1/search/multi", map[string]any{
		"query":     "quorum requirements",
		"corpus_id": "bylaws",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
}

func TestCorpusLifecycleOverHTTP(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := postJSON(t, handler, "/v1/search", map[string]any{"query": "refund", "corpus_id": "policies"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before load, got %d", res.Code)
	}

	body, _ := json.Marshal(map[string]any{
		"passages": []map[string]string{
			{"content": "refund requests are honored within thirty days", "source": "policies.md"},
		},
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/corpora/policies", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on load, got %d: %s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/v1/corpora", nil)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on list, got %d", listRec.Code)
	}
	var listing struct {
		Corpora []domain.CorpusStats `json:"corpora"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode corpora listing: %v", err)
	}
	found := false
	for _, stats := range listing.Corpora {
		if stats.CorpusID == "policies" && stats.PassageCount == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("loaded corpus missing from listing: %+v", listing.Corpora)
	}

	res = postJSON(t, handler, "/v1/search", map[string]any{"query": "refund requests", "corpus_id": "policies"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 after load, got %d", res.Code)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/corpora/policies", nil)
	delRec := httptest.NewRecorder()
	handler.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on unload, got %d", delRec.Code)
	}

	res = postJSON(t, handler, "/v1/search", map[string]any{"query": "refund", "corpus_id": "policies"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after unload, got %d", res.Code)
	}
}

func TestEmptyCorpusPutUnloads(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	body, _ := json.Marshal(map[string]any{"passages": []map[string]string{}})
	req := httptest.NewRequest(http.MethodPut, "/v1/corpora/bylaws", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on empty load, got %d: %s", rec.Code, rec.Body.String())
	}

	res := postJSON(t, handler, "/v1/search", map[string]any{"query": "quorum", "corpus_id": "bylaws"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after empty reload, got %d: %s", res.Code, res.Body.String())
	}
}

func TestSearchMetricsExposeVariantAndRerankSeries(t *testing.T) {
	serverMetrics := metrics.NewHTTPServerMetrics("api")
	handler := newTestHandlerWithMetrics(t, config.Config{}, serverMetrics)

	res := postJSON(t, handler, "/v1/search/multi", map[string]any{
		"query":     "quorum requirements",
		"corpus_id": "bylaws",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	exposition := rec.Body.String()

	if !strings.Contains(exposition, `psearch_retrieval_query_variants_count{endpoint="search_multi",service="api"}`) {
		t.Fatalf("variant count series missing from exposition:\n%s", exposition)
	}
	if !strings.Contains(exposition, `psearch_retrieval_rerank_skipped_total{reason="no_encoder",service="api"}`) {
		t.Fatalf("rerank skip series missing from exposition:\n%s", exposition)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
