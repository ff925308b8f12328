// Package handler exposes the contact search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SojoC/PPAM-WEB-APP/internal/analytics"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/cache"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/engine"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/vocabulary"
	apperrors "github.com/SojoC/PPAM-WEB-APP/pkg/errors"
	"github.com/SojoC/PPAM-WEB-APP/pkg/logger"
	"github.com/SojoC/PPAM-WEB-APP/pkg/metrics"
)

const (
	// MaxQueryLength bounds the query in runes.
	MaxQueryLength = 256
	maxBodyBytes   = 8 << 10
)

// Searcher is the read side of the engine.
type Searcher interface {
	Search(ctx context.Context, query string) (*engine.Result, error)
	IndexStats() (vocabulary.Stats, error)
	LastRebuild() time.Time
}

// Rebuilder rebuilds the index and invalidates cached results.
type Rebuilder interface {
	Rebuild(ctx context.Context, reason string) (vocabulary.Stats, error)
}

type Handler struct {
	searcher  Searcher
	rebuilder Rebuilder
	cache     *cache.QueryCache
	tracker   analytics.Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. queryCache, tracker and m may be nil.
func New(searcher Searcher, rebuilder Rebuilder, queryCache *cache.QueryCache, tracker analytics.Tracker, m *metrics.Metrics) *Handler {
	return &Handler{
		searcher:  searcher,
		rebuilder: rebuilder,
		cache:     queryCache,
		tracker:   tracker,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search answers GET ?q= and POST {"query": ...}. An empty query lists the
// whole directory.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query, err := readQuery(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var (
		result   *engine.Result
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, func() (*engine.Result, error) {
			return h.searcher.Search(ctx, query)
		})
	} else {
		result, err = h.searcher.Search(ctx, query)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"total", result.Total,
		"returned", len(result.Results),
		"corrections", len(result.Corrections),
		"degraded", result.Degraded,
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, result, cacheHit, latency)

	w.Header().Set("X-Cache", strings.ToUpper(cacheStatus))
	if result.Degraded {
		w.Header().Set("Warning", `199 - "vocabulary index unavailable; terms matched literally"`)
	}
	h.writeJSON(w, http.StatusOK, result)
}

func readQuery(w http.ResponseWriter, r *http.Request) (string, error) {
	var query string
	switch r.Method {
	case http.MethodPost:
		var req searchRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body must be JSON like {\"query\": \"...\"}")
		}
		query = req.Query
	default:
		query = r.URL.Query().Get("q")
	}
	if !utf8.ValidString(query) {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query must be valid UTF-8")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "query longer than %d characters", MaxQueryLength)
	}
	return query, nil
}

func (h *Handler) track(ctx context.Context, result *engine.Result, cacheHit bool, latency time.Duration) {
	if h.tracker == nil {
		return
	}
	corrections := make([]analytics.Correction, 0, len(result.Corrections))
	for _, c := range result.Corrections {
		corrections = append(corrections, analytics.Correction{Input: c.Input, Term: c.Term, Strategy: c.Strategy})
	}
	h.tracker.Track(analytics.SearchEvent{
		Type:        analytics.EventSearch,
		Query:       result.Query,
		Clauses:     result.Clauses,
		Corrections: corrections,
		TotalHits:   result.Total,
		Returned:    len(result.Results),
		LatencyMs:   latency.Milliseconds(),
		CacheHit:    cacheHit,
		Browse:      result.Browse,
		Degraded:    result.Degraded,
		Timestamp:   time.Now().UTC(),
		RequestID:   logger.RequestID(ctx),
	})
}

type indexStatsResponse struct {
	vocabulary.Stats
	LastRebuild time.Time `json:"last_rebuild"`
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rebuilder.Rebuild(r.Context(), "api")
	if err != nil {
		logger.FromContext(r.Context()).Error("rebuild failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, indexStatsResponse{Stats: stats, LastRebuild: h.searcher.LastRebuild()})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.searcher.IndexStats()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, indexStatsResponse{Stats: stats, LastRebuild: h.searcher.LastRebuild()})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Internal details of unexpected
// errors are not exposed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case errors.Is(err, apperrors.ErrStoreUnreachable):
		message = apperrors.ErrStoreUnreachable.Error()
	case errors.Is(err, apperrors.ErrIndexUnavailable):
		message = apperrors.ErrIndexUnavailable.Error()
	case status == http.StatusInternalServerError:
		message = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
