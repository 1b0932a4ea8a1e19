package service

import (
	"context"
	"sync"
)

// AuctionLocks provides mutual exclusion per auction id. Bid admission, the
// scheduler's closure pass, and the manual end action all acquire the same
// lock before mutating an auction, so acceptances and closures for one
// auction are totally ordered while different auctions proceed in parallel.
type AuctionLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewAuctionLocks creates an empty lock table.
func NewAuctionLocks() *AuctionLocks {
	return &AuctionLocks{
		locks: make(map[string]chan struct{}),
	}
}

// Acquire blocks until the auction's lock is held or ctx is done. Callers
// bound the wait through the context deadline; the scheduler uses a short
// timeout and retries on the next tick instead of waiting behind a slow
// admission.
func (l *AuctionLocks) Acquire(ctx context.Context, auctionID string) (release func(), err error) {
	l.mu.Lock()
	ch, ok := l.locks[auctionID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[auctionID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
