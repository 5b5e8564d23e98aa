package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/tools"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/rpc"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/tracing"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the content tools over HTTP and RPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting content hub",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
		"rpc_enabled", cfg.RPC.Enabled,
	)
	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}
	checker := health.NewChecker()

	store, pg, err := openCorpus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	if pg != nil {
		defer pg.Close()
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pg.Ping(ctx); err != nil {
				// The corpus is already in memory; only reloads need the database.
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	core, err := tools.BuildCore(store, cfg.Search, cfg.Ranking)
	if err != nil {
		return err
	}
	checker.Register("index", func(context.Context) health.ComponentHealth {
		st := core.Index.Stats()
		return health.ComponentHealth{
			Status: health.StatusUp,
			Details: map[string]any{
				"documents":   st.Documents,
				"terms":       st.Terms,
				"fingerprint": store.Fingerprint(),
			},
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, store.Fingerprint(), m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
		}
	}

	deps := tools.Deps{
		Cache:   queryCache,
		Tracer:  tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate),
		Metrics: m,
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ToolEvents)
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, m)
		collector.Start(ctx)
		defer producer.Close()
		defer collector.Close()
		deps.Tracker = collector
		slog.Info("tool analytics enabled", "topic", cfg.Kafka.Topics.ToolEvents)
	}
	svc := tools.NewService(core, cfg.Search.DefaultTopK, deps)

	routerOpts := tools.RouterOptions{
		Timeout: cfg.Server.WriteTimeout,
		CORS:    &middleware.CORSConfig{AllowOrigins: cfg.Server.CORSOrigins, MaxAge: 10 * time.Minute},
	}
	if len(cfg.Server.APIKeys) > 0 {
		routerOpts.APIKeys = middleware.NewAPIKeys(cfg.Server.APIKeys)
		slog.Info("api key authentication enabled", "keys", routerOpts.APIKeys.Len())
	}
	if cfg.RateLimit.Enabled {
		routerOpts.Limiter = middleware.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		go routerOpts.Limiter.Cleanup(ctx, time.Minute)
	}

	if cfg.RPC.Enabled {
		rpcServer := rpc.NewServer()
		tools.RegisterRPC(rpcServer, svc)
		slog.Info("rpc server enabled", "port", cfg.RPC.Port, "methods", rpcServer.Methods())
		go func() {
			if err := rpcServer.Serve(fmt.Sprintf(":%d", cfg.RPC.Port)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      tools.NewRouter(svc, checker, m, routerOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("content hub listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	checker.MarkReady()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("content hub stopped")
	return nil
}
