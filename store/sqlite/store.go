package sqlite

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
)

//go:embed schema.sql
var schema string

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store persists one collection. It satisfies bitemporal.Storage[T].
type Store[T any] struct {
	db    *DB
	table string
}

// NewStore creates the collection's table and claim indexes if they do not
// exist yet and returns the store bound to them. Collection names become
// table names, so they are held to identifier shape.
func NewStore[T any](db *DB, collection string) (*Store[T], error) {
	if !collectionName.MatchString(collection) {
		return nil, fmt.Errorf("collection name %q must match %s", collection, collectionName)
	}
	if _, err := db.db.Exec(fmt.Sprintf(schema, collection)); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", collection, err)
	}
	db.register(collection)
	return &Store[T]{db: db, table: collection}, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func (s *Store[T]) Append(ctx context.Context, rec bitemporal.Record[T]) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
	(identity, payload, valid_from, valid_to, transaction_from, transaction_to, technical_version)
VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.db.ExecContext(ctx, query,
		rec.Identity.String(),
		string(payload),
		encodeTime(rec.Valid.From),
		encodeTime(rec.Valid.To),
		encodeTime(rec.Transaction.From),
		encodeTime(rec.Transaction.To),
		rec.TechnicalVersion,
	)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("version %d of %s already claimed: %w",
			rec.TechnicalVersion, rec.Identity, bitemporal.ErrConcurrencyConflict)
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", s.table, err)
	}
	return nil
}

func (s *Store[T]) ScanByIdentity(ctx context.Context, id uuid.UUID) ([]bitemporal.Record[T], error) {
	query := fmt.Sprintf(`SELECT payload, valid_from, valid_to, transaction_from, transaction_to, technical_version
FROM %s WHERE identity = ? ORDER BY technical_version, transaction_to`, s.table)
	rows, err := s.db.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []bitemporal.Record[T]
	for rows.Next() {
		var (
			payload                            string
			validFrom, validTo, txnFrom, txnTo string
		)
		rec := bitemporal.Record[T]{Identity: id}
		if err := rows.Scan(&payload, &validFrom, &validTo, &txnFrom, &txnTo, &rec.TechnicalVersion); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload of %s: %w", id, err)
		}
		if rec.Valid.From, err = decodeTime(validFrom); err != nil {
			return nil, err
		}
		if rec.Valid.To, err = decodeTime(validTo); err != nil {
			return nil, err
		}
		if rec.Transaction.From, err = decodeTime(txnFrom); err != nil {
			return nil, err
		}
		if rec.Transaction.To, err = decodeTime(txnTo); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store[T]) NextIdentity(context.Context) (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (s *Store[T]) Clear(ctx context.Context) error {
	if _, err := s.db.db.ExecContext(ctx, "DELETE FROM "+s.table); err != nil {
		return fmt.Errorf("clear %s: %w", s.table, err)
	}
	return nil
}
