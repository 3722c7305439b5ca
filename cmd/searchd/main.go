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

	"golang.org/x/sync/errgroup"

	"github.com/cuebase/tracksearch/internal/cache"
	"github.com/cuebase/tracksearch/internal/engine"
	"github.com/cuebase/tracksearch/internal/ingest"
	"github.com/cuebase/tracksearch/internal/library"
	"github.com/cuebase/tracksearch/internal/server"
	"github.com/cuebase/tracksearch/internal/store"
	"github.com/cuebase/tracksearch/pkg/config"
	"github.com/cuebase/tracksearch/pkg/health"
	"github.com/cuebase/tracksearch/pkg/logger"
	"github.com/cuebase/tracksearch/pkg/metrics"
	"github.com/cuebase/tracksearch/pkg/middleware"
	"github.com/cuebase/tracksearch/pkg/postgres"
	pkgredis "github.com/cuebase/tracksearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting track search service",
		"port", cfg.Server.Port,
		"inline_threshold", cfg.Engine.InlineThreshold,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var trackStore *store.TrackStore
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, running without persistence", "error", err)
	} else {
		defer pgClient.Close()
		trackStore, err = store.New(ctx, pgClient)
		if err != nil {
			slog.Error("failed to initialize track store", "error", err)
			os.Exit(1)
		}
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	eng := engine.New(cfg.Engine)
	eng.Start(ctx)

	lib := library.New(eng, trackStore, queryCache, m)
	if trackStore != nil {
		if err := lib.Load(ctx); err != nil {
			slog.Error("failed to load library", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("starting with empty library")
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := lib.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d tracks, %d terms", stats.Tracks, stats.Terms),
		}
	})
	var pgPing, redisPing func(context.Context) error
	if pgClient != nil {
		pgPing = pgClient.Ping
	}
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	checker.Register("postgres", health.Ping(pgPing))
	checker.Register("redis", health.Ping(redisPing))

	h := server.New(lib, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", health.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("api server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if m != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux,
		}
		g.Go(func() error {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	consumer := ingest.New(cfg.Kafka, lib)
	g.Go(func() error {
		if err := consumer.Start(gctx); err != nil {
			slog.Warn("change feed consumer stopped", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("api server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("service error", "error", err)
		os.Exit(1)
	}
	slog.Info("track search service stopped")
}
