// Package instrumented decorates a Storage with Prometheus counters and
// latencies, labelled by collection and operation.
package instrumented

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitemporaldb_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"collection", "op", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitemporaldb_storage_operation_duration_seconds",
			Help:    "Storage operation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"collection", "op"},
	)

	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitemporaldb_storage_conflicts_total",
			Help: "Total number of appends lost to a concurrent writer",
		},
		[]string{"collection"},
	)
)

// Store wraps an inner Storage and accounts every call. It satisfies
// bitemporal.Storage[T] itself, so it drops in front of any backend.
type Store[T any] struct {
	inner      bitemporal.Storage[T]
	collection string
}

func Wrap[T any](inner bitemporal.Storage[T], collection string) *Store[T] {
	return &Store[T]{inner: inner, collection: collection}
}

func (s *Store[T]) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(s.collection, op, outcome).Inc()
	operationDuration.WithLabelValues(s.collection, op).Observe(time.Since(start).Seconds())
}

func (s *Store[T]) Append(ctx context.Context, rec bitemporal.Record[T]) error {
	start := time.Now()
	err := s.inner.Append(ctx, rec)
	s.observe("append", start, err)
	if errors.Is(err, bitemporal.ErrConcurrencyConflict) {
		conflictsTotal.WithLabelValues(s.collection).Inc()
	}
	return err
}

func (s *Store[T]) ScanByIdentity(ctx context.Context, id uuid.UUID) ([]bitemporal.Record[T], error) {
	start := time.Now()
	records, err := s.inner.ScanByIdentity(ctx, id)
	s.observe("scan", start, err)
	return records, err
}

func (s *Store[T]) NextIdentity(ctx context.Context) (uuid.UUID, error) {
	start := time.Now()
	id, err := s.inner.NextIdentity(ctx)
	s.observe("next_identity", start, err)
	return id, err
}

func (s *Store[T]) Clear(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Clear(ctx)
	s.observe("clear", start, err)
	return err
}
