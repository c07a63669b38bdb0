package wallet

import (
	"context"
	"sync"
)

// Subscription delivers the confirmation count of one transaction. The
// producer publishes the latest count repeatedly; consumers must latch on the
// first value they act on.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	counts chan uint64
	errs   chan error
	once   sync.Once
}

// NewSubscription creates a subscription bound to ctx
func NewSubscription(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	return &Subscription{
		ctx:    ctx,
		cancel: cancel,
		counts: make(chan uint64),
		errs:   make(chan error, 1),
	}
}

// Confirmations returns the stream of confirmation counts
func (s *Subscription) Confirmations() <-chan uint64 {
	return s.counts
}

// Err delivers at most one terminal error
func (s *Subscription) Err() <-chan error {
	return s.errs
}

// Done is closed once the subscription is cancelled
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context is cancelled on Unsubscribe; producers should stop when it ends
func (s *Subscription) Context() context.Context {
	return s.ctx
}

// Publish delivers n, blocking until it is received. It returns false once
// the subscription has been cancelled.
func (s *Subscription) Publish(n uint64) bool {
	select {
	case s.counts <- n:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Fail delivers a terminal error and stops the producer side
func (s *Subscription) Fail(err error) {
	s.once.Do(func() {
		s.errs <- err
	})
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.cancel()
}
