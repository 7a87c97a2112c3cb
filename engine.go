package bitemporal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultConflictRetries = 3

type options struct {
	log     *zap.Logger
	clock   func() time.Time
	retries int
}

// Option configures an Engine.
type Option func(*options)

// WithLogger routes engine diagnostics through log. Default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock overrides the transaction stamp source. Tests use this to pin
// history to a deterministic timeline.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithRetries bounds how many times a conflicting write is retried before
// the conflict surfaces to the caller.
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

// Engine owns the bitemporal write discipline over a Storage port: every
// mutation appends, closing is a rewrite-as-append, and a context captured
// before a write keeps answering exactly what it answered then. One Engine
// serves one collection.
type Engine[T any] struct {
	store   Storage[T]
	locks   *identityLocks
	log     *zap.Logger
	clock   func() time.Time
	retries int
}

func NewEngine[T any](store Storage[T], opts ...Option) *Engine[T] {
	o := options{
		log:     zap.NewNop(),
		clock:   time.Now,
		retries: defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[T]{
		store:   store,
		locks:   newIdentityLocks(),
		log:     o.log,
		clock:   o.clock,
		retries: o.retries,
	}
}

func (e *Engine[T]) now() time.Time {
	return e.clock().UTC()
}

// Store opens a brand new timeline: a fresh identity asserting payload over
// the valid period, known from now on. This is the only way an identity
// comes into existence.
func (e *Engine[T]) Store(ctx context.Context, payload T, valid Period) (uuid.UUID, error) {
	if err := valid.validate(); err != nil {
		return uuid.Nil, err
	}

	id, err := e.store.NextIdentity(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("allocate identity: %w", err)
	}

	rec := Record[T]{
		Identity:    id,
		Payload:     payload,
		Valid:       valid,
		Transaction: Since(e.now()),
	}
	if err := e.store.Append(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("append v0 of %s: %w", id, err)
	}

	e.log.Debug("stored new identity",
		zap.Stringer("identity", id),
		zap.Stringer("valid", valid))
	return id, nil
}

// Update supersedes what is asserted about id inside the valid period with
// payload: a technical correction of bad data. The engine applies it with
// the same algorithm as UpdateLogical; the two names exist so call sites
// can say whether the data was wrong or the world changed.
func (e *Engine[T]) Update(ctx context.Context, id uuid.UUID, payload T, valid Period) error {
	return e.UpdateLogical(ctx, id, payload, valid)
}

// UpdateLogical records that inside the valid period the identity is now
// described by payload. Open assertions overlapping the period are closed
// and re-asserted trimmed to the parts the period does not cover, so the
// rest of the timeline keeps its previous description, and a query pinned
// before this write still answers the previous one. Fails with ErrNotFound
// when the identity has no open version at all.
func (e *Engine[T]) UpdateLogical(ctx context.Context, id uuid.UUID, payload T, valid Period) error {
	if err := valid.validate(); err != nil {
		return err
	}
	if err := e.locks.acquire(ctx, id); err != nil {
		return err
	}
	defer e.locks.release(id)

	for attempt := 0; ; attempt++ {
		err := e.supersede(ctx, id, payload, valid)
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) || attempt >= e.retries {
			return err
		}
		e.log.Warn("write conflict, retrying",
			zap.Stringer("identity", id),
			zap.Int("attempt", attempt+1))
	}
}

// supersede runs one close-then-append pass. The first append commits the
// write: the remaining appends run on a cancel-detached context so a caller
// deadline cannot split the sequence.
func (e *Engine[T]) supersede(ctx context.Context, id uuid.UUID, payload T, valid Period) error {
	records, err := e.store.ScanByIdentity(ctx, id)
	if err != nil {
		return fmt.Errorf("scan %s: %w", id, err)
	}

	effective, err := collapse(records)
	if err != nil {
		return err
	}
	var current []Record[T]
	for _, rec := range effective {
		if !rec.Closed() {
			current = append(current, rec)
		}
	}
	if len(current) == 0 {
		return fmt.Errorf("%w: %s has no open version", ErrNotFound, id)
	}
	slices.SortFunc(current, func(a, b Record[T]) int {
		return a.Valid.From.Compare(b.Valid.From)
	})

	// A stamp that does not advance past the rows it closes would leave
	// empty transaction windows, so nudge it forward when needed.
	now := e.now()
	for _, cur := range current {
		if !cur.Transaction.From.Before(now) {
			now = cur.Transaction.From.Add(time.Microsecond)
		}
	}

	version := nextVersion(records)
	var closes, appends []Record[T]
	for _, cur := range current {
		if !cur.Valid.Overlaps(valid) {
			continue
		}

		closing := cur
		closing.Transaction.To = now
		closes = append(closes, closing)

		// Trimmed continuations keep the old payload asserted outside the
		// superseded window.
		if cur.Valid.From.Before(valid.From) {
			appends = append(appends, Record[T]{
				Identity:         id,
				Payload:          cur.Payload,
				Valid:            Period{From: cur.Valid.From, To: valid.From},
				Transaction:      Since(now),
				TechnicalVersion: version,
			})
			version++
		}
		if valid.To.Before(cur.Valid.To) {
			appends = append(appends, Record[T]{
				Identity:         id,
				Payload:          cur.Payload,
				Valid:            Period{From: valid.To, To: cur.Valid.To},
				Transaction:      Since(now),
				TechnicalVersion: version,
			})
			version++
		}
	}
	appends = append(appends, Record[T]{
		Identity:         id,
		Payload:          payload,
		Valid:            valid,
		Transaction:      Since(now),
		TechnicalVersion: version,
	})

	if err := ctx.Err(); err != nil {
		return err
	}
	sequence := append(closes, appends...)
	if err := e.store.Append(ctx, sequence[0]); err != nil {
		return fmt.Errorf("append to %s: %w", id, err)
	}
	ctx = context.WithoutCancel(ctx)
	for _, rec := range sequence[1:] {
		if err := e.store.Append(ctx, rec); err != nil {
			return fmt.Errorf("append to %s: %w", id, err)
		}
	}

	e.log.Debug("superseded",
		zap.Stringer("identity", id),
		zap.Stringer("valid", valid),
		zap.Int("closed", len(closes)),
		zap.Int("appended", len(appends)))
	return nil
}

func nextVersion[T any](records []Record[T]) int64 {
	var next int64
	for _, rec := range records {
		if rec.TechnicalVersion >= next {
			next = rec.TechnicalVersion + 1
		}
	}
	return next
}

// FindLogical resolves id against an explicit pair of moments. Zero moments
// default to now. Absence is a normal empty result, not an error.
func (e *Engine[T]) FindLogical(ctx context.Context, id uuid.UUID, at TemporalContext) (Record[T], bool, error) {
	if at.ValidMoment.IsZero() {
		at.ValidMoment = e.now()
	}
	if at.SystemMoment.IsZero() {
		at.SystemMoment = e.now()
	}

	records, err := e.store.ScanByIdentity(ctx, id)
	if err != nil {
		return Record[T]{}, false, fmt.Errorf("scan %s: %w", id, err)
	}
	return Resolve(records, at)
}

// Find is FindLogical with the moments taken from the context carriers, for
// callers that pinned WithValidMoment/WithSystemMoment upstream. Unpinned
// moments default to now.
func (e *Engine[T]) Find(ctx context.Context, id uuid.UUID) (Record[T], bool, error) {
	return e.FindLogical(ctx, id, TemporalContext{
		ValidMoment:  GetValidMoment(ctx),
		SystemMoment: GetSystemMoment(ctx),
	})
}

// History returns every assertion ever made about id, in the order the
// database came to know things.
func (e *Engine[T]) History(ctx context.Context, id uuid.UUID) ([]Record[T], error) {
	records, err := e.store.ScanByIdentity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", id, err)
	}
	SortTimeline(records)
	return records, nil
}

// Clear wipes the collection behind the engine. Test isolation only; no
// invariant survives it.
func (e *Engine[T]) Clear(ctx context.Context) error {
	return e.store.Clear(ctx)
}
