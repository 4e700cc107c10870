package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dmaslov/passage-search/internal/config"
	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	engine  ports.SearchEngine
	corpora ports.CorpusManager
	queue   ports.CorpusEventQueue
	metrics *metrics.HTTPServerMetrics
	cfg     config.Config
}

// NewRouter wires the retrieval engine behind the HTTP surface. queue and
// serverMetrics may be nil; corpus updates then stay local to this instance.
func NewRouter(
	engine ports.SearchEngine,
	corpora ports.CorpusManager,
	queue ports.CorpusEventQueue,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg config.Config,
) *Router {
	return &Router{
		engine:  engine,
		corpora: corpora,
		queue:   queue,
		metrics: serverMetrics,
		cfg:     cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/search/multi", rt.searchMulti)
	mux.HandleFunc("/v1/corpora", rt.listCorpora)
	mux.HandleFunc("/v1/corpora/", rt.corpusByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueTimeout)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query      string                `json:"query"`
	CorpusID   string                `json:"corpus_id"`
	MaxResults int                   `json:"max_results,omitempty"`
	Weights    *domain.FusionWeights `json:"weights,omitempty"`
	Threshold  *float64              `json:"confidence_threshold,omitempty"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	rt.runSearch(w, r, "search", rt.engine.Search)
}

func (rt *Router) searchMulti(w http.ResponseWriter, r *http.Request) {
	rt.runSearch(w, r, "search_multi", rt.engine.SearchMultiQuery)
}

func (rt *Router) runSearch(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	run func(context.Context, string, string, ports.SearchOptions) (domain.RetrievalOutcome, error),
) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if strings.TrimSpace(req.CorpusID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpus_id is required"})
		return
	}

	start := time.Now()
	outcome, err := run(r.Context(), req.Query, req.CorpusID, ports.SearchOptions{
		MaxResults: req.MaxResults,
		Weights:    req.Weights,
		Threshold:  req.Threshold,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, endpoint, outcomeLabel(outcome), len(outcome.Results), outcome.Stats.VariantCount, time.Since(start))
		if reason := outcome.Stats.RerankSkipReason; reason != "" {
			rt.metrics.RecordRerankSkip(serviceName, reason)
		}
		if outcome.LowConfidence {
			rt.metrics.RecordRelaxedRetry(serviceName, endpoint)
		}
	}
	writeJSON(w, http.StatusOK, outcome)
}

func outcomeLabel(outcome domain.RetrievalOutcome) string {
	switch {
	case outcome.Kind == domain.OutcomeEmptyWithSuggestion:
		return "empty_with_suggestion"
	case outcome.LowConfidence:
		return "low_confidence"
	default:
		return "results"
	}
}

func (rt *Router) listCorpora(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corpora": rt.corpora.CorpusStats()})
}

type loadCorpusRequest struct {
	Passages []domain.Passage `json:"passages"`
}

func (rt *Router) corpusByID(w http.ResponseWriter, r *http.Request) {
	corpusID := strings.TrimPrefix(r.URL.Path, "/v1/corpora/")
	if corpusID == "" || strings.Contains(corpusID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpus id is required"})
		return
	}

	switch r.Method {
	case http.MethodPut:
		rt.loadCorpus(w, r, corpusID)
	case http.MethodDelete:
		rt.corpora.UnloadCorpus(corpusID)
		if rt.metrics != nil {
			rt.metrics.DropCorpus(serviceName, corpusID)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) loadCorpus(w http.ResponseWriter, r *http.Request, corpusID string) {
	var req loadCorpusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := rt.corpora.LoadCorpus(corpusID, req.Passages); err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		// An empty passage set unloads the corpus, so drop the gauge too.
		if len(req.Passages) == 0 {
			rt.metrics.DropCorpus(serviceName, corpusID)
		} else {
			rt.metrics.SetCorpusPassages(serviceName, corpusID, len(req.Passages))
		}
	}
	if rt.queue != nil {
		if err := rt.queue.PublishCorpusUpdated(r.Context(), corpusID); err != nil {
			// Local index already swapped; peers will catch up on the next publish.
			writeJSON(w, http.StatusOK, map[string]any{
				"corpus_id": corpusID,
				"passages":  len(req.Passages),
				"warning":   "corpus update notification failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"corpus_id": corpusID,
		"passages":  len(req.Passages),
	})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
