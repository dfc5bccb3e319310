package searchsvc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/specimen-curation/labelsearch/internal/datefilter"
	"github.com/specimen-curation/labelsearch/internal/search"
	"github.com/specimen-curation/labelsearch/pkg/config"
	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
	"github.com/specimen-curation/labelsearch/pkg/logger"
	"github.com/specimen-curation/labelsearch/pkg/metrics"
)

// Hit is one ranked result on the wire.
type Hit struct {
	RecordID string  `json:"record_id"`
	Score    float64 `json:"score"`
}

// SearchResponse is the JSON body returned by the search endpoint.
type SearchResponse struct {
	Query     string  `json:"query"`
	Scoring   string  `json:"scoring"`
	Threshold float64 `json:"threshold"`
	TotalHits int     `json:"total_hits"`
	Results   []Hit   `json:"results"`
}

// Handler serves search queries over HTTP.
type Handler struct {
	searcher *search.Searcher
	dates    *datefilter.Filter
	cache    *QueryCache
	metrics  *metrics.Metrics
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// New creates a Handler. dates, cache, and metrics may each be nil; the
// corresponding feature (date filtering, caching, instrumentation) is then
// disabled.
func New(
	searcher *search.Searcher,
	dates *datefilter.Filter,
	cache *QueryCache,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		searcher: searcher,
		dates:    dates,
		cache:    cache,
		metrics:  m,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&scoring=...&threshold=...&limit=...
// &exact=...&date=....
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, apperrors.New(apperrors.ErrInvalidInput, 400, "missing query parameter q"))
		return
	}
	scoring := r.URL.Query().Get("scoring")
	if scoring == "" {
		scoring = h.cfg.Scoring
	}
	exact := r.URL.Query().Get("exact") == "true"
	date := r.URL.Query().Get("date")

	threshold := h.cfg.ScoreThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 1 {
			writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, 400, "bad threshold %q", v))
			return
		}
		threshold = t
	}
	limit := h.cfg.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, 400, "bad limit %q", v))
			return
		}
		limit = n
	}
	if limit > h.cfg.MaxResults {
		limit = h.cfg.MaxResults
	}

	var predicate search.Predicate
	if date != "" {
		if h.dates == nil {
			writeError(w, apperrors.New(apperrors.ErrInvalidInput, 400, "date filtering is not enabled"))
			return
		}
		p, err := h.dates.Predicate(date)
		if err != nil {
			writeError(w, err)
			return
		}
		predicate = p
	}

	key := CacheKey{
		Query:     query,
		Scoring:   scoring,
		Exact:     exact,
		Date:      date,
		Threshold: threshold,
		Limit:     limit,
	}
	compute := func() (*SearchResponse, error) {
		return h.run(r, query, scoring, exact, predicate, threshold, limit)
	}

	var resp *SearchResponse
	var err error
	var cached bool
	if h.cache != nil {
		resp, cached, err = h.cache.GetOrCompute(r.Context(), key, compute)
	} else {
		resp, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		writeError(w, err)
		return
	}

	log.Debug("search served", "query", query, "hits", resp.TotalHits, "cached", cached)
	writeJSON(w, http.StatusOK, resp)
}

// run executes the query against the engine and shapes the response.
func (h *Handler) run(
	r *http.Request,
	query, scoring string,
	exact bool,
	predicate search.Predicate,
	threshold float64,
	limit int,
) (*SearchResponse, error) {
	start := time.Now()
	hits, err := h.searcher.Search(r.Context(), query, search.Options{
		Scoring:   scoring,
		Exact:     exact,
		Predicate: predicate,
	})
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(scoring).Inc()
		h.metrics.QueryLatency.WithLabelValues(scoring).Observe(time.Since(start).Seconds())
		h.metrics.QueryHits.Observe(float64(len(hits)))
	}

	results := make([]Hit, 0, limit)
	for _, hit := range hits {
		if hit.Score < threshold {
			break
		}
		results = append(results, Hit{RecordID: hit.Record.ID(), Score: hit.Score})
		if len(results) == limit {
			break
		}
	}
	return &SearchResponse{
		Query:     query,
		Scoring:   scoring,
		Threshold: threshold,
		TotalHits: len(results),
		Results:   results,
	}, nil
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	hits, misses := h.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"hits":    hits,
		"misses":  misses,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
