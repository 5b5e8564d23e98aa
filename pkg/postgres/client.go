// Package postgres opens the lib/pq pool shared by the corpus source and
// the analytics snapshot store, and applies their table definitions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/config"
)

const applicationName = "revenue-content-hub"

type Client struct {
	DB *sql.DB
}

// New opens a pool and fails when the server is not reachable within five
// seconds.
func New(cfg config.PostgresConfig) (*Client, error) {
	dsn := cfg.DSN() + " application_name=" + applicationName
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Migrate applies ddl for the named schema under a transaction-scoped
// advisory lock, so replicas starting together do not race on CREATE.
func (c *Client) Migrate(ctx context.Context, name string, ddl string) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(name)); err != nil {
			return fmt.Errorf("locking schema %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("applying schema %s: %w", name, err)
		}
		return nil
	})
}

func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(applicationName + "/" + name))
	return int64(h.Sum64())
}

// InTx runs fn in a transaction and commits only when fn succeeds.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
