// Package storetest exercises the storage port contract. Backend packages
// call Run from their own tests so every backend answers for the same
// guarantees: lossless round-trips, identity isolation, and the version
// claims that stop concurrent double-writes.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
)

// Payload is the domain stand-in the contract tests store.
type Payload struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Run exercises one backend. newStore must return an empty store on every
// call.
func Run(t *testing.T, newStore func(t *testing.T) bitemporal.Storage[Payload]) {
	ctx := context.Background()

	record := func(id uuid.UUID, version int64, transaction bitemporal.Period) bitemporal.Record[Payload] {
		return bitemporal.Record[Payload]{
			Identity:         id,
			Payload:          Payload{Name: "crate", Size: 42},
			Valid:            bitemporal.Always(),
			Transaction:      transaction,
			TechnicalVersion: version,
		}
	}

	t.Run("RoundTrip", func(t *testing.T) {
		store := newStore(t)
		id := uuid.New()

		// Sub-second stamp with microsecond precision so every backend can
		// hold it exactly.
		stamp := bitemporal.AsTime("2023-06-15 08:30:00").Add(500 * time.Millisecond)
		open := bitemporal.Record[Payload]{
			Identity:         id,
			Payload:          Payload{Name: "crate", Size: 42},
			Valid:            bitemporal.MustPeriod(bitemporal.AsTime("2023-01-01"), bitemporal.AsTime("2024-01-01")),
			Transaction:      bitemporal.Since(stamp),
			TechnicalVersion: 0,
		}
		closed := open
		closed.Transaction.To = stamp.Add(time.Hour)
		closed.Payload = Payload{Name: "crate", Size: 41}
		closed.TechnicalVersion = 1

		require.NoError(t, store.Append(ctx, open))
		require.NoError(t, store.Append(ctx, closed))

		got, err := store.ScanByIdentity(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 2)

		bitemporal.SortTimeline(got)
		assert.Equal(t, open, got[0], "open record must round-trip losslessly, EndOfTime included")
		assert.Equal(t, closed, got[1], "closed record must round-trip losslessly")
		assert.True(t, got[0].Transaction.Open())
		assert.True(t, got[1].Closed())
	})

	t.Run("ScanUnknownIdentityIsEmpty", func(t *testing.T) {
		store := newStore(t)

		got, err := store.ScanByIdentity(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ScanIsolatesIdentities", func(t *testing.T) {
		store := newStore(t)
		a, b := uuid.New(), uuid.New()

		require.NoError(t, store.Append(ctx, record(a, 0, bitemporal.Since(bitemporal.AsTime("2023-01-01")))))
		require.NoError(t, store.Append(ctx, record(b, 0, bitemporal.Since(bitemporal.AsTime("2023-02-01")))))

		got, err := store.ScanByIdentity(ctx, a)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a, got[0].Identity)
	})

	t.Run("NextIdentityAllocatesDistinct", func(t *testing.T) {
		store := newStore(t)

		seen := make(map[uuid.UUID]bool)
		for i := 0; i < 16; i++ {
			id, err := store.NextIdentity(ctx)
			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, id)
			require.False(t, seen[id], "identity %s allocated twice", id)
			seen[id] = true
		}
	})

	t.Run("OpenClaimRejectsSecondWriter", func(t *testing.T) {
		store := newStore(t)
		id := uuid.New()

		require.NoError(t, store.Append(ctx, record(id, 3, bitemporal.Since(bitemporal.AsTime("2023-01-01")))))

		err := store.Append(ctx, record(id, 3, bitemporal.Since(bitemporal.AsTime("2023-01-02"))))
		require.ErrorIs(t, err, bitemporal.ErrConcurrencyConflict)
	})

	t.Run("ClosedClaimRejectsSecondClose", func(t *testing.T) {
		store := newStore(t)
		id := uuid.New()

		open := record(id, 3, bitemporal.Since(bitemporal.AsTime("2023-01-01")))
		require.NoError(t, store.Append(ctx, open))

		// The rewrite that closes the open original is legal, a second
		// close of the same version is not.
		firstClose := record(id, 3, bitemporal.MustPeriod(bitemporal.AsTime("2023-01-01"), bitemporal.AsTime("2023-03-01")))
		require.NoError(t, store.Append(ctx, firstClose))

		secondClose := record(id, 3, bitemporal.MustPeriod(bitemporal.AsTime("2023-01-01"), bitemporal.AsTime("2023-04-01")))
		err := store.Append(ctx, secondClose)
		require.ErrorIs(t, err, bitemporal.ErrConcurrencyConflict)
	})

	t.Run("DistinctVersionsDoNotConflict", func(t *testing.T) {
		store := newStore(t)
		id := uuid.New()

		for version := int64(0); version < 4; version++ {
			require.NoError(t, store.Append(ctx, record(id, version, bitemporal.Since(bitemporal.AsTime("2023-01-01")))))
		}

		got, err := store.ScanByIdentity(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("ClearWipes", func(t *testing.T) {
		store := newStore(t)
		id := uuid.New()

		require.NoError(t, store.Append(ctx, record(id, 0, bitemporal.Since(bitemporal.AsTime("2023-01-01")))))
		require.NoError(t, store.Clear(ctx))

		got, err := store.ScanByIdentity(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
