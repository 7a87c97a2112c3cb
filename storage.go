package bitemporal

import (
	"context"

	"github.com/google/uuid"
)

// Storage is the persistence port the engine drives. Backends only append
// and scan: closing an assertion is itself an append (a copy of the row with
// a finite transaction end), so every assertion ever made stays queryable.
//
// Appends must enforce two uniqueness claims per identity: at most one open
// row (transaction end = EndOfTime) per technical version, and at most one
// closed row per technical version. An append that loses either claim fails
// with ErrConcurrencyConflict. The claims are what stop two processes from
// superseding the same version twice; in-process serialization is the
// engine's job, not the backend's.
type Storage[T any] interface {
	// Append persists one assertion.
	Append(ctx context.Context, rec Record[T]) error

	// ScanByIdentity returns every assertion ever made about the identity,
	// in no particular order. Unknown identities yield an empty scan, not an
	// error.
	ScanByIdentity(ctx context.Context, id uuid.UUID) ([]Record[T], error)

	// NextIdentity allocates a fresh identity.
	NextIdentity(ctx context.Context) (uuid.UUID, error)

	// Clear wipes the collection. Test isolation and administrative resets
	// only; no invariant survives it.
	Clear(ctx context.Context) error
}
