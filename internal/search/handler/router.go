package handler

import (
	"net/http"
	"time"

	"github.com/SojoC/PPAM-WEB-APP/internal/analytics"
	"github.com/SojoC/PPAM-WEB-APP/internal/auth/ratelimit"
	"github.com/SojoC/PPAM-WEB-APP/pkg/health"
	"github.com/SojoC/PPAM-WEB-APP/pkg/metrics"
	"github.com/SojoC/PPAM-WEB-APP/pkg/middleware"
)

type RouterConfig struct {
	Search    *Handler
	Analytics *analytics.Handler
	Health    *health.Checker
	Metrics   *metrics.Metrics
	// Limiter enables per-client rate limiting when set.
	Limiter *ratelimit.Limiter
	// TrustedProxies may report the client address in X-Forwarded-For.
	TrustedProxies middleware.TrustedProxies
	RequestTimeout time.Duration
	CORS           middleware.CORSConfig
}

// NewRouter builds the API handler.
//
// Route table:
//
//	GET    /api/v1/search              search (?q=, empty lists everyone)
//	POST   /api/v1/search              search ({"query": "..."})
//	POST   /api/v1/index/rebuild       rebuild vocabulary, invalidate cache
//	GET    /api/v1/index/stats         vocabulary statistics
//	GET    /api/v1/cache/stats         cache hit/miss counters
//	POST   /api/v1/cache/invalidate    drop cached results
//	GET    /api/v1/analytics           aggregated search analytics
//	GET    /api/v1/analytics/snapshots persisted analytics snapshots
//	GET    /health/live                liveness
//	GET    /health/ready               readiness
//	GET    /metrics                    Prometheus
//
// Middleware, outermost first: RequestID, CORS, Metrics, RateLimit, Timeout.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/search", cfg.Search.Search)
	mux.HandleFunc("POST /api/v1/search", cfg.Search.Search)
	mux.HandleFunc("POST /api/v1/index/rebuild", cfg.Search.Rebuild)
	mux.HandleFunc("GET /api/v1/index/stats", cfg.Search.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", cfg.Search.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", cfg.Search.CacheInvalidate)

	if cfg.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", cfg.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", cfg.Analytics.Snapshots)
	}
	if cfg.Health != nil {
		mux.HandleFunc("GET /health/live", cfg.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", cfg.Health.ReadyHandler())
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(cfg.CORS),
	}
	if cfg.Metrics != nil {
		mws = append(mws, middleware.Metrics(cfg.Metrics))
	}
	if cfg.Limiter != nil {
		mws = append(mws, middleware.RateLimit(cfg.Limiter, cfg.TrustedProxies, cfg.Metrics))
	}
	if cfg.RequestTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.RequestTimeout))
	}
	return middleware.Chain(mux, mws...)
}
