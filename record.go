package bitemporal

import (
	"fmt"

	"github.com/google/uuid"
)

// Record is one bitemporal assertion: a payload pinned to the period it is
// valid in reality and the period the system asserted it. Records are
// immutable once appended; superseding one appends new records, a record is
// never edited in place.
type Record[T any] struct {
	Identity         uuid.UUID `json:"identity"`
	Payload          T         `json:"payload"`
	Valid            Period    `json:"valid"`
	Transaction      Period    `json:"transaction"`
	TechnicalVersion int64     `json:"technical_version"`
}

// Closed reports whether the assertion has been retired, meaning its
// transaction period no longer runs to EndOfTime.
func (r Record[T]) Closed() bool {
	return !r.Transaction.Open()
}

func (r Record[T]) String() string {
	return fmt.Sprintf("[v%d VALID: %s TXN: %s] %v",
		r.TechnicalVersion, r.Valid, r.Transaction, r.Payload)
}
