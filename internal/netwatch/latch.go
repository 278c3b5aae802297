package netwatch

import (
	"context"
	"sync"
)

// latch is a one-shot, idempotent, multi-waiter broadcast signal. It models
// the lifecycle signals from spec.md §4.A: resolving is safe to call any
// number of times, and waiting before or after resolution both work.
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

// resolve fires the latch. Idempotent.
func (l *latch) resolve() {
	l.once.Do(func() { close(l.ch) })
}

// wait blocks until the latch resolves or ctx is done, whichever comes
// first.
func (l *latch) wait(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// latchPair bundles the two ordered per-requestId signals described in
// spec.md §4.A: requestWillBeSent fires first, responseReceived second.
type latchPair struct {
	requestWillBeSent *latch
	responseReceived  *latch
}

func newLatchPair() *latchPair {
	return &latchPair{
		requestWillBeSent: newLatch(),
		responseReceived:  newLatch(),
	}
}
