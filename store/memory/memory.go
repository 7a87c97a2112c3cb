// Package memory implements the storage port as a mutex-guarded in-process
// table. It is the reference backend: engine tests run against it and its
// claim handling is the model the durable backends follow.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
)

type Store[T any] struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]bitemporal.Record[T]
}

func New[T any]() *Store[T] {
	return &Store[T]{records: make(map[uuid.UUID][]bitemporal.Record[T])}
}

func (s *Store[T]) Append(ctx context.Context, rec bitemporal.Record[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records[rec.Identity] {
		if existing.TechnicalVersion != rec.TechnicalVersion {
			continue
		}
		if existing.Transaction.Open() == rec.Transaction.Open() {
			return fmt.Errorf("version %d of %s already claimed: %w",
				rec.TechnicalVersion, rec.Identity, bitemporal.ErrConcurrencyConflict)
		}
	}

	s.records[rec.Identity] = append(s.records[rec.Identity], rec)
	return nil
}

func (s *Store[T]) ScanByIdentity(ctx context.Context, id uuid.UUID) ([]bitemporal.Record[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records[id]), nil
}

func (s *Store[T]) NextIdentity(ctx context.Context) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	return uuid.NewRandom()
}

func (s *Store[T]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uuid.UUID][]bitemporal.Record[T])
	return nil
}
