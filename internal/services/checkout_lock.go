package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// LocalCheckoutLocker serialises checkouts per buyer within a single process.
type LocalCheckoutLocker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewLocalCheckoutLocker constructs an empty in-process locker.
func NewLocalCheckoutLocker() *LocalCheckoutLocker {
	return &LocalCheckoutLocker{active: make(map[string]struct{})}
}

// Acquire marks the buyer as checking out. A second caller gets ErrCheckoutInProgress immediately
// rather than waiting for the first to finish.
func (l *LocalCheckoutLocker) Acquire(ctx context.Context, buyerID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(buyerID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[key]; held {
		return nil, ErrCheckoutInProgress
	}
	l.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, key)
			l.mu.Unlock()
		})
	}, nil
}

// LeaseBackend grants exclusive, self-expiring leases. It is satisfied by locks.RedisLocker.
type LeaseBackend interface {
	TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// LeasedCheckoutLocker serialises checkouts per buyer across instances through a lease backend.
type LeasedCheckoutLocker struct {
	backend LeaseBackend
}

// NewLeasedCheckoutLocker adapts backend to CheckoutLocker.
func NewLeasedCheckoutLocker(backend LeaseBackend) *LeasedCheckoutLocker {
	return &LeasedCheckoutLocker{backend: backend}
}

// Acquire fails with ErrCheckoutInProgress when another instance holds the buyer's lease.
func (l *LeasedCheckoutLocker) Acquire(ctx context.Context, buyerID string) (func(), error) {
	release, acquired, err := l.backend.TryAcquire(ctx, strings.TrimSpace(buyerID))
	if err != nil {
		return nil, fmt.Errorf("checkout lease: %w", err)
	}
	if !acquired {
		return nil, ErrCheckoutInProgress
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}
