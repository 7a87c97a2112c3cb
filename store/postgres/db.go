// Package postgres persists bitemporal collections in PostgreSQL, one table
// per collection, with JSONB payloads and timestamptz stamps. The storage
// contract's uniqueness claims are partial unique indexes over the open
// sentinel, so concurrent writers race on the database, not in memory.
package postgres

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool holding any number of collection
// tables.
type DB struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	tables []string
}

// Open connects the pool for dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{pool: pool}, nil
}

func (d *DB) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *DB) register(table string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.tables, table) {
		d.tables = append(d.tables, table)
	}
}

// ClearAll truncates every collection opened through this DB.
func (d *DB) ClearAll(ctx context.Context) error {
	d.mu.Lock()
	tables := slices.Clone(d.tables)
	d.mu.Unlock()

	for _, table := range tables {
		if _, err := d.pool.Exec(ctx, "TRUNCATE "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
