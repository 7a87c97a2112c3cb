package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
)

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// appendScript claims (identity, technical version, open-or-closed) and
// appends the record in one atomic step. Returns 0 when another writer
// already holds the claim.
var appendScript = goredis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[3], ARGV[3])
return 1
`)

// Store persists one collection. It satisfies bitemporal.Storage[T].
type Store[T any] struct {
	db         *DB
	collection string
}

// NewStore binds a store to the collection's key space.
func NewStore[T any](db *DB, collection string) (*Store[T], error) {
	if !collectionName.MatchString(collection) {
		return nil, fmt.Errorf("collection name %q must match %s", collection, collectionName)
	}
	db.register(collection)
	return &Store[T]{db: db, collection: collection}, nil
}

func (s *Store[T]) Append(ctx context.Context, rec bitemporal.Record[T]) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	claim := fmt.Sprintf("c:%d", rec.TechnicalVersion)
	if rec.Transaction.Open() {
		claim = fmt.Sprintf("o:%d", rec.TechnicalVersion)
	}

	id := rec.Identity.String()
	claimed, err := appendScript.Run(ctx, s.db.client,
		[]string{claimKey(s.collection, id), recordsKey(s.collection, id), identitiesKey(s.collection)},
		claim, string(line), id).Int()
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.collection, err)
	}
	if claimed == 0 {
		return fmt.Errorf("version %d of %s already claimed: %w",
			rec.TechnicalVersion, rec.Identity, bitemporal.ErrConcurrencyConflict)
	}
	return nil
}

func (s *Store[T]) ScanByIdentity(ctx context.Context, id uuid.UUID) ([]bitemporal.Record[T], error) {
	lines, err := s.db.client.LRange(ctx, recordsKey(s.collection, id.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.collection, err)
	}

	var records []bitemporal.Record[T]
	for _, line := range lines {
		var rec bitemporal.Record[T]
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record of %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store[T]) NextIdentity(context.Context) (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (s *Store[T]) Clear(ctx context.Context) error {
	return clearCollection(ctx, s.db.client, s.collection)
}
