package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

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
// exist yet and returns the store bound to them.
func NewStore[T any](ctx context.Context, db *DB, collection string) (*Store[T], error) {
	if !collectionName.MatchString(collection) {
		return nil, fmt.Errorf("collection name %q must match %s", collection, collectionName)
	}
	for _, stmt := range strings.Split(fmt.Sprintf(schema, collection), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", collection, err)
		}
	}
	db.register(collection)
	return &Store[T]{db: db, table: collection}, nil
}

// encodeTime pins stamps to the microsecond before they go out, so what is
// written equals what timestamptz hands back.
func encodeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Store[T]) Append(ctx context.Context, rec bitemporal.Record[T]) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
	(identity, payload, valid_from, valid_to, transaction_from, transaction_to, technical_version)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)
	_, err = s.db.pool.Exec(ctx, query,
		rec.Identity.String(),
		payload,
		encodeTime(rec.Valid.From),
		encodeTime(rec.Valid.To),
		encodeTime(rec.Transaction.From),
		encodeTime(rec.Transaction.To),
		rec.TechnicalVersion,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
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
FROM %s WHERE identity = $1 ORDER BY technical_version, transaction_to`, s.table)
	rows, err := s.db.pool.Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []bitemporal.Record[T]
	for rows.Next() {
		var (
			payload                            []byte
			validFrom, validTo, txnFrom, txnTo time.Time
		)
		rec := bitemporal.Record[T]{Identity: id}
		if err := rows.Scan(&payload, &validFrom, &validTo, &txnFrom, &txnTo, &rec.TechnicalVersion); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload of %s: %w", id, err)
		}
		rec.Valid = bitemporal.Period{From: validFrom.UTC(), To: validTo.UTC()}
		rec.Transaction = bitemporal.Period{From: txnFrom.UTC(), To: txnTo.UTC()}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store[T]) NextIdentity(context.Context) (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (s *Store[T]) Clear(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, "TRUNCATE "+s.table); err != nil {
		return fmt.Errorf("clear %s: %w", s.table, err)
	}
	return nil
}
