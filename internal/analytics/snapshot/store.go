// Package snapshot persists periodic copies of the analytics report to
// PostgreSQL so content-gap history survives aggregator restarts.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    total_calls BIGINT NOT NULL DEFAULT 0,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_at ON analytics_snapshots (captured_at DESC);`

const selectSnapshots = `SELECT id, captured_at, data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`

// Snapshot is one persisted report.
type Snapshot struct {
	ID         int64                     `json:"id"`
	CapturedAt time.Time                 `json:"captured_at"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

// StatsSource produces the report to persist.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, "analytics_snapshots", schema)
}

// Save inserts stats and returns the stored row.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) (Snapshot, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding report: %w", err)
	}
	snap := Snapshot{Stats: stats}
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO analytics_snapshots (total_calls, data) VALUES ($1, $2) RETURNING id, captured_at`,
		stats.TotalCalls, data,
	).Scan(&snap.ID, &snap.CapturedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("inserting analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"id", snap.ID,
		"total_calls", stats.TotalCalls,
		"zero_result_queries", len(stats.ZeroResultQueries),
		"glossary_misses", len(stats.GlossaryMisses),
	)
	return snap, nil
}

// Latest returns nil, nil when nothing has been saved yet.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	list, err := s.List(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// List returns up to limit snapshots, newest first. Rows whose payload no
// longer decodes are skipped.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectSnapshots, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			out = append(out, *snap)
		}
	}
	return out, rows.Err()
}

func (s *Store) scan(rows *sql.Rows) (*Snapshot, error) {
	var snap Snapshot
	var data []byte
	if err := rows.Scan(&snap.ID, &snap.CapturedAt, &data); err != nil {
		return nil, fmt.Errorf("scanning snapshot row: %w", err)
	}
	if err := json.Unmarshal(data, &snap.Stats); err != nil {
		s.logger.Warn("skipping undecodable snapshot", "id", snap.ID, "error", err)
		return nil, nil
	}
	return &snap, nil
}

// StartPeriodicSave snapshots src every interval until ctx is cancelled,
// then once more on the way out. Ticks where no call arrived since the
// previous save are skipped. The returned channel closes after the final
// save has been attempted.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastCalls int64 = -1
		save := func(ctx context.Context, final bool) {
			stats := src.Stats()
			if !final && stats.TotalCalls == lastCalls {
				return
			}
			if _, err := s.Save(ctx, stats); err != nil {
				s.logger.Error("snapshot failed", "final", final, "error", err)
				return
			}
			lastCalls = stats.TotalCalls
		}
		for {
			select {
			case <-ticker.C:
				save(ctx, false)
			case <-ctx.Done():
				// ctx is already done; the final save gets its own deadline.
				finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				save(finalCtx, true)
				cancel()
				return
			}
		}
	}()
	return done
}

// ErrDisabled is returned by handlers when persistence is switched off.
var ErrDisabled = errors.New("snapshot persistence is disabled")
