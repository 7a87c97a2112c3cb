package bitemporal

import (
	"cmp"
	"slices"
	"strings"
)

// SortTimeline orders a scan for audit reading: by when each assertion was
// made, then technical version, with an open original ahead of the rewrite
// that closed it.
func SortTimeline[T any](records []Record[T]) {
	slices.SortStableFunc(records, func(a, b Record[T]) int {
		if c := a.Transaction.From.Compare(b.Transaction.From); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TechnicalVersion, b.TechnicalVersion); c != 0 {
			return c
		}
		return b.Transaction.To.Compare(a.Transaction.To)
	})
}

// FormatTimeline renders records one per line in the house record format.
// The output is deterministic for a deterministic clock, which makes it the
// surface golden tests pin.
func FormatTimeline[T any](records []Record[T]) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.String())
		b.WriteByte('\n')
	}
	return b.String()
}
