package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SojoC/PPAM-WEB-APP/internal/analytics"
	"github.com/SojoC/PPAM-WEB-APP/internal/auth/ratelimit"
	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/cache"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/engine"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/handler"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/rebuild"
	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
	"github.com/SojoC/PPAM-WEB-APP/pkg/database"
	apperrors "github.com/SojoC/PPAM-WEB-APP/pkg/errors"
	"github.com/SojoC/PPAM-WEB-APP/pkg/health"
	"github.com/SojoC/PPAM-WEB-APP/pkg/kafka"
	"github.com/SojoC/PPAM-WEB-APP/pkg/logger"
	"github.com/SojoC/PPAM-WEB-APP/pkg/metrics"
	"github.com/SojoC/PPAM-WEB-APP/pkg/middleware"
	pkgredis "github.com/SojoC/PPAM-WEB-APP/pkg/redis"
	"github.com/SojoC/PPAM-WEB-APP/pkg/resilience"
)

// degradedRetryInterval is how often a service without a vocabulary index
// retries the rebuild.
const degradedRetryInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and PPAM_* env vars when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting contact search service", "port", cfg.Server.Port, "driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	var db *database.Client
	err = resilience.Retry(ctx, "database-connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func(context.Context) error {
		db, err = database.New(cfg.Database)
		return err
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.Database.Driver == config.DriverSQLite {
		if err := directory.Migrate(ctx, db.DB, db.Driver); err != nil {
			slog.Error("failed to migrate sqlite directory", "error", err)
			os.Exit(1)
		}
	}

	store := directory.NewGuardedStore(directory.NewSQLStore(db.DB), cfg.Search.StoreTimeout, resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	eng := engine.New(store, engine.OptionsFromConfig(cfg.Search), m)

	var (
		backend     cache.Backend
		redisClient *pkgredis.Client
	)
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, using in-process cache", "error", err)
		backend = cache.NewLocalBackend(cfg.Redis.LocalCacheSize, cfg.Redis.CacheTTL)
	} else {
		defer redisClient.Close()
		backend = cache.NewRedisBackend(redisClient)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}
	queryCache := cache.New(backend, cfg.Redis.CacheTTL, m)

	aggregator := analytics.NewAggregator()
	var tracker analytics.Tracker = aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, aggregator.HandleMessage())
		defer analyticsConsumer.Close()
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	var snapshots *analytics.SnapshotStore
	if cfg.Analytics.SnapshotInterval > 0 {
		snapshots = analytics.NewSnapshotStore(db)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
			snapshots = nil
		} else {
			snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
	}

	coordinator := rebuild.NewCoordinator(eng, queryCache, tracker)
	initialRebuild(ctx, coordinator)
	if !eng.Ready() {
		go retryRebuild(ctx, coordinator, eng)
	}

	if cfg.Kafka.Enabled {
		changes := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DirectoryChanged, coordinator.HandleMessage())
		defer changes.Close()
		go func() {
			if err := changes.Start(ctx); err != nil {
				slog.Error("directory change consumer error", "error", err)
			}
		}()
		slog.Info("listening for directory changes", "topic", cfg.Kafka.Topics.DirectoryChanged)
	}

	checker := health.NewChecker()
	checker.Register("database", health.Ping(db.Ping))
	checker.Register("index", func(context.Context) health.ComponentHealth {
		stats, err := eng.IndexStats()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no vocabulary index, matching literally"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d words", stats.Words)}
	})
	checker.Register("directory_breaker", func(context.Context) health.ComponentHealth {
		if state := store.BreakerState(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", health.Degradable(redisClient.Ping))
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute, time.Minute)
		defer limiter.Stop()
	}
	proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		slog.Error("invalid rateLimit.trustedProxies", "error", err)
		os.Exit(1)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
	router := handler.NewRouter(handler.RouterConfig{
		Search:         handler.New(eng, coordinator, queryCache, tracker, m),
		Analytics:      analytics.NewHandler(aggregator, snapshots),
		Health:         checker,
		Metrics:        m,
		Limiter:        limiter,
		TrustedProxies: proxies,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORS:           corsCfg,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("contact search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("contact search service stopped")
}

// initialRebuild builds the first vocabulary index, retrying while the
// directory is unreachable. On failure the service keeps running and
// answers queries literally.
func initialRebuild(ctx context.Context, c *rebuild.Coordinator) {
	err := resilience.Retry(ctx, "initial-rebuild", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		Retryable:    apperrors.IsTransient,
	}, func(ctx context.Context) error {
		_, err := c.Rebuild(ctx, "startup")
		return err
	})
	if err != nil {
		slog.Warn("initial rebuild failed, serving in degraded mode", "error", err)
	}
}

func retryRebuild(ctx context.Context, c *rebuild.Coordinator, eng *engine.Engine) {
	ticker := time.NewTicker(degradedRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if eng.Ready() {
				return
			}
			if _, err := c.Rebuild(ctx, "degraded-retry"); err == nil {
				slog.Info("vocabulary index available, leaving degraded mode")
				return
			}
		}
	}
}
