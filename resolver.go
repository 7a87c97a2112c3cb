package bitemporal

import (
	"fmt"
	"slices"
	"time"
)

// collapse reduces a raw scan to the effective assertion per technical
// version. Closing a version appends a rewrite with a finite transaction
// end while the open original stays physically present; the rewrite shadows
// the original here. One version asserted open twice, or closed twice, is
// corrupt history.
func collapse[T any](records []Record[T]) ([]Record[T], error) {
	if len(records) == 0 {
		return nil, nil
	}

	type group struct {
		open   []Record[T]
		closed []Record[T]
	}
	groups := make(map[int64]*group)
	for _, rec := range records {
		g, ok := groups[rec.TechnicalVersion]
		if !ok {
			g = &group{}
			groups[rec.TechnicalVersion] = g
		}
		if rec.Closed() {
			g.closed = append(g.closed, rec)
		} else {
			g.open = append(g.open, rec)
		}
	}

	versions := make([]int64, 0, len(groups))
	for v := range groups {
		versions = append(versions, v)
	}
	slices.Sort(versions)

	id := records[0].Identity
	effective := make([]Record[T], 0, len(groups))
	for _, v := range versions {
		g := groups[v]
		if len(g.open) > 1 {
			return nil, &InconsistentHistoryError{
				Identity: id,
				Matches:  len(g.open),
				Reason:   fmt.Sprintf("technical version %d is asserted open %d times", v, len(g.open)),
			}
		}
		if len(g.closed) > 1 {
			return nil, &InconsistentHistoryError{
				Identity: id,
				Matches:  len(g.closed),
				Reason:   fmt.Sprintf("technical version %d is closed %d times", v, len(g.closed)),
			}
		}
		if len(g.closed) == 1 {
			effective = append(effective, g.closed[0])
		} else {
			effective = append(effective, g.open[0])
		}
	}
	return effective, nil
}

// Resolve answers which single assertion was true at at.ValidMoment
// according to what the system knew at at.SystemMoment. An empty result is
// the normal "no knowledge existed at that point"; more than one match
// means the history violates its uniqueness invariant and is surfaced as an
// error, never decided by a tie-break.
func Resolve[T any](records []Record[T], at TemporalContext) (Record[T], bool, error) {
	effective, err := collapse(records)
	if err != nil {
		return Record[T]{}, false, err
	}

	var (
		match Record[T]
		n     int
	)
	for _, rec := range effective {
		if rec.Transaction.Contains(at.SystemMoment) && rec.Valid.Contains(at.ValidMoment) {
			match = rec
			n++
		}
	}

	switch n {
	case 0:
		return Record[T]{}, false, nil
	case 1:
		return match, true, nil
	default:
		return Record[T]{}, false, &InconsistentHistoryError{
			Identity: effective[0].Identity,
			Matches:  n,
			Reason: fmt.Sprintf("%d assertions current for valid %s / system %s",
				n, at.ValidMoment.Format(time.DateTime), at.SystemMoment.Format(time.DateTime)),
		}
	}
}
