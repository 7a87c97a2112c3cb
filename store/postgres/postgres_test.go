package postgres

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
	"github.com/mohan-palisetti/bitemporaldb/store/storetest"
)

// getTestDB connects to the database POSTGRES_TEST_DSN points at, skipping
// the test when none is available.
func getTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_DSN not set")
	}

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

var tableSeq atomic.Int64

func newTestStore(t *testing.T, db *DB) *Store[storetest.Payload] {
	t.Helper()
	name := fmt.Sprintf("bt_test_%d_%d", time.Now().Unix(), tableSeq.Add(1))
	store, err := NewStore[storetest.Payload](context.Background(), db, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+name)
	})
	return store
}

func TestContract(t *testing.T) {
	db := getTestDB(t)
	storetest.Run(t, func(t *testing.T) bitemporal.Storage[storetest.Payload] {
		return newTestStore(t, db)
	})
}

func TestCollectionNameIsValidated(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"", "Employees", "1st", "emp-old", "emp;drop"} {
		_, err := NewStore[storetest.Payload](ctx, db, name)
		assert.Error(t, err, "%q must be rejected", name)
	}
}

func TestEngineOverPostgres(t *testing.T) {
	// The January correction scenario against real timestamptz columns.
	db := getTestDB(t)
	store := newTestStore(t, db)

	now := bitemporal.AsTime("2023-06-01 09:00:00")
	engine := bitemporal.NewEngine[storetest.Payload](store,
		bitemporal.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	id, err := engine.Store(ctx, storetest.Payload{Name: "room", Size: 25}, bitemporal.Always())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	january := bitemporal.MustPeriod(bitemporal.AsTime("2023-01-01"), bitemporal.AsTime("2023-02-01"))
	require.NoError(t, engine.Update(ctx, id, storetest.Payload{Name: "room", Size: 24}, january))

	now = now.Add(time.Hour)
	rec, ok, err := engine.FindLogical(ctx, id, bitemporal.TemporalContext{
		ValidMoment:  bitemporal.AsTime("2023-01-15"),
		SystemMoment: now,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 24, rec.Payload.Size)

	rec, ok, err = engine.FindLogical(ctx, id, bitemporal.TemporalContext{
		ValidMoment:  bitemporal.AsTime("2023-02-15"),
		SystemMoment: now,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 25, rec.Payload.Size)

	history, err := engine.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestClearAllWipesEveryCollection(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()

	first := newTestStore(t, db)
	second := newTestStore(t, db)

	stamp := bitemporal.AsTime("2023-06-01 09:00:00")
	stores := []*Store[storetest.Payload]{first, second}
	ids := make([]uuid.UUID, len(stores))
	for i, store := range stores {
		ids[i] = uuid.New()
		require.NoError(t, store.Append(ctx, bitemporal.Record[storetest.Payload]{
			Identity:    ids[i],
			Payload:     storetest.Payload{Name: "x", Size: 1},
			Valid:       bitemporal.Always(),
			Transaction: bitemporal.Since(stamp),
		}))
	}

	require.NoError(t, db.ClearAll(ctx))

	for i, store := range stores {
		records, err := store.ScanByIdentity(ctx, ids[i])
		require.NoError(t, err)
		assert.Empty(t, records)
	}
}
