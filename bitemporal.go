// Package bitemporal keeps full bitemporal history for arbitrary payloads:
// every fact carries a valid-time period (when it is true in reality) and a
// transaction-time period (when the system asserted it). Writes only ever
// append; reads resolve the single version that was true-and-known at any
// pair of moments.
package bitemporal

import (
	"fmt"
	"time"
)

// EndOfTime is the open upper bound for periods that are still in effect.
// Periods never carry a null close stamp, they carry this.
var EndOfTime time.Time

// BeginningOfTime is the matching lower sentinel: the zero time, "since always".
var BeginningOfTime time.Time

func init() {
	EndOfTime, _ = time.Parse(time.DateTime, "9999-12-31 23:59:59")
}

// Period is a half-open interval [From, To) on the timeline.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewPeriod builds [from, to). The start must come strictly before the end.
func NewPeriod(from, to time.Time) (Period, error) {
	p := Period{From: from, To: to}
	if err := p.validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// MustPeriod is NewPeriod for literals in tests and wiring code.
func MustPeriod(from, to time.Time) Period {
	p, err := NewPeriod(from, to)
	if err != nil {
		panic(err)
	}
	return p
}

// Always covers the whole timeline, BeginningOfTime to EndOfTime.
func Always() Period {
	return Period{From: BeginningOfTime, To: EndOfTime}
}

// Since covers [from, EndOfTime).
func Since(from time.Time) Period {
	return Period{From: from, To: EndOfTime}
}

func (p Period) validate() error {
	if !p.From.Before(p.To) {
		return fmt.Errorf("%w: %s does not precede %s",
			ErrInvalidPeriod, p.From.Format(time.DateTime), p.To.Format(time.DateTime))
	}
	return nil
}

// Contains reports whether t falls inside the period. The close stamp is
// exclusive: a period ending at midnight does not contain midnight.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

// Overlaps reports whether the two periods share at least one instant.
func (p Period) Overlaps(o Period) bool {
	return p.From.Before(o.To) && o.From.Before(p.To)
}

// Open reports whether the period runs to EndOfTime.
func (p Period) Open() bool {
	return p.To.Equal(EndOfTime)
}

func (p Period) String() string {
	return fmt.Sprintf("%s -> %s", p.From.Format(time.DateTime), p.To.Format(time.DateTime))
}
