package bitemporal

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// identityLocks serializes writers per identity. Writers on different
// identities never contend and readers take no locks at all.
type identityLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[uuid.UUID]chan struct{})}
}

// acquire blocks until the identity's lock is held or ctx is done.
func (l *identityLocks) acquire(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release must only be called after a successful acquire.
func (l *identityLocks) release(id uuid.UUID) {
	l.mu.Lock()
	ch := l.locks[id]
	l.mu.Unlock()
	<-ch
}
