package bitemporal

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPeriod rejects a period whose start does not precede its end.
	ErrInvalidPeriod = errors.New("bitemporal: invalid period")

	// ErrNotFound means the identity has no currently open version to supersede.
	ErrNotFound = errors.New("bitemporal: record not found")

	// ErrConcurrencyConflict is reported by a backend when an append loses the
	// race for a version claim. The engine retries these a bounded number of
	// times before giving up.
	ErrConcurrencyConflict = errors.New("bitemporal: concurrent write conflict")
)

// InconsistentHistoryError reports a scan that contradicts itself: either a
// single context matched more than one assertion, or one technical version
// carries conflicting rows. It means the stored history is corrupt, usually
// by a write that bypassed the engine, and is never resolved by picking a
// winner.
type InconsistentHistoryError struct {
	Identity uuid.UUID
	Matches  int
	Reason   string
}

func (e *InconsistentHistoryError) Error() string {
	return fmt.Sprintf("bitemporal: inconsistent history for %s: %s", e.Identity, e.Reason)
}

// IsInconsistentHistory reports whether err is an InconsistentHistoryError.
func IsInconsistentHistory(err error) bool {
	var target *InconsistentHistoryError
	return errors.As(err, &target)
}
