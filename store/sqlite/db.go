// Package sqlite persists bitemporal collections in sqlite, one table per
// collection. Records are stored as appended rows with RFC3339 stamps and a
// JSON payload column; the uniqueness claims of the storage contract are
// partial unique indexes over the open sentinel.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var pragmas = []string{
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = 100000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA locking_mode = EXCLUSIVE",
}

// DB wraps one sqlite database holding any number of collection tables.
type DB struct {
	db *sql.DB

	mu     sync.Mutex
	tables []string
}

// Open opens (or creates) the database at path and applies the house
// pragmas. The pool is pinned to a single connection: sqlite serializes
// writers anyway, and a second connection to ":memory:" would see a
// different database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) register(table string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.tables, table) {
		d.tables = append(d.tables, table)
	}
}

// Collections lists every record table in the database, registered in this
// process or not.
func (d *DB) Collections(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ClearAll wipes every collection opened through this DB.
func (d *DB) ClearAll(ctx context.Context) error {
	d.mu.Lock()
	tables := slices.Clone(d.tables)
	d.mu.Unlock()

	for _, table := range tables {
		if _, err := d.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
