package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
	"github.com/mohan-palisetti/bitemporaldb/store/sqlite"
	"github.com/mohan-palisetti/bitemporaldb/store/storetest"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) bitemporal.Storage[storetest.Payload] {
		store, err := sqlite.NewStore[storetest.Payload](newTestDB(t), "payloads")
		require.NoError(t, err)
		return store
	})
}

func TestCollectionNameIsValidated(t *testing.T) {
	db := newTestDB(t)

	for _, name := range []string{"employees", "rooms_v2", "a"} {
		_, err := sqlite.NewStore[storetest.Payload](db, name)
		assert.NoError(t, err, "%q is a legal collection name", name)
	}
	for _, name := range []string{"", "Employees", "1st", "emp-old", "emp loyees", "emp;drop"} {
		_, err := sqlite.NewStore[storetest.Payload](db, name)
		assert.Error(t, err, "%q must be rejected", name)
	}
}

func TestEngineOverSqlite(t *testing.T) {
	// The January correction scenario, persisted for real: the sqlite rows
	// must resolve exactly like the in-memory reference.
	store, err := sqlite.NewStore[storetest.Payload](newTestDB(t), "rooms")
	require.NoError(t, err)

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

func TestCollectionsListsEveryTable(t *testing.T) {
	db := newTestDB(t)

	_, err := sqlite.NewStore[storetest.Payload](db, "employees")
	require.NoError(t, err)
	_, err = sqlite.NewStore[storetest.Payload](db, "rooms")
	require.NoError(t, err)

	names, err := db.Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"employees", "rooms"}, names)
}

func TestClearAllWipesEveryCollection(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	employees, err := sqlite.NewStore[storetest.Payload](db, "employees")
	require.NoError(t, err)
	rooms, err := sqlite.NewStore[storetest.Payload](db, "rooms")
	require.NoError(t, err)

	stamp := bitemporal.AsTime("2023-06-01 09:00:00")
	stores := []bitemporal.Storage[storetest.Payload]{employees, rooms}
	ids := make([]uuid.UUID, len(stores))
	for i, store := range stores {
		ids[i] = uuid.New()
		require.NoError(t, store.Append(ctx, bitemporal.Record[storetest.Payload]{
			Identity:    ids[i],
			Payload:     storetest.Payload{Name: "x", Size: 1},
			Valid:       bitemporal.Always(),
			Transaction: bitemporal.Since(stamp),
		}))
		records, err := store.ScanByIdentity(ctx, ids[i])
		require.NoError(t, err)
		require.Len(t, records, 1)
	}

	require.NoError(t, db.ClearAll(ctx))

	for i, store := range stores {
		records, err := store.ScanByIdentity(ctx, ids[i])
		require.NoError(t, err)
		assert.Empty(t, records)
	}
}
