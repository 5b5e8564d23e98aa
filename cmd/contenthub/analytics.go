package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/postgres"
)

func newAnalyticsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Aggregate tool-call events from Kafka and serve content-gap reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			return runAnalytics(cmd.Context(), cfg)
		},
	}
}

func runAnalytics(ctx context.Context, cfg *config.Config) error {
	if !cfg.Kafka.Enabled {
		return errors.New("analytics needs kafka.enabled: tool events arrive over Kafka")
	}
	slog.Info("starting analytics service", "port", cfg.Analytics.Port, "topic", cfg.Kafka.Topics.ToolEvents)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ToolEvents, analytics.HandleEvent(aggregator)).
		WithSchema(analytics.EventSchema)
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	var snapshots *snapshot.Store
	if cfg.Analytics.PersistSnapshots {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		snapshots = snapshot.NewStore(pg)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return err
		}
		saved := snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		// Runs before pg.Close so the final snapshot can still be written.
		defer func() {
			cancel()
			<-saved
		}()
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pg.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := analytics.NewHandler(aggregator)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Get("/", h.Stats)
		r.Get("/gaps", h.ContentGaps)
		r.Get("/snapshots", snapshotsHandler(snapshots))
		r.Get("/snapshots/latest", latestSnapshotHandler(snapshots))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      r,
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

	checker.MarkReady()
	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("analytics service stopped")
	return nil
}

// snapshotsHandler lists persisted reports, newest first. It answers 404
// when snapshot persistence is off.
func snapshotsHandler(store *snapshot.Store) http.HandlerFunc {
	log := logger.WithComponent("analytics-snapshots-http")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store == nil {
			writeSnapshotsDisabled(w)
			return
		}
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "limit must be within [1, 100]"})
				return
			}
			limit = n
		}
		list, err := store.List(r.Context(), limit)
		if err != nil {
			log.Error("listing snapshots failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
			return
		}
		if list == nil {
			list = []snapshot.Snapshot{}
		}
		json.NewEncoder(w).Encode(map[string]any{"snapshots": list})
	}
}

// latestSnapshotHandler serves the most recent persisted report.
func latestSnapshotHandler(store *snapshot.Store) http.HandlerFunc {
	log := logger.WithComponent("analytics-snapshots-http")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store == nil {
			writeSnapshotsDisabled(w)
			return
		}
		latest, err := store.Latest(r.Context())
		if err != nil {
			log.Error("loading latest snapshot failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
			return
		}
		if latest == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "no snapshot saved yet"})
			return
		}
		json.NewEncoder(w).Encode(latest)
	}
}

func writeSnapshotsDisabled(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{"error": snapshot.ErrDisabled.Error()})
}
