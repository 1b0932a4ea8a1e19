package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aaronwang/auction-house/internal/models"
	"github.com/aaronwang/auction-house/internal/service"
	"github.com/aaronwang/auction-house/internal/store"
)

// Closer is the unified closure operation shared with the manual end action.
type Closer interface {
	Close(ctx context.Context, auctionID string) (*models.Auction, error)
}

// Scheduler drives time-based auction transitions: pending auctions past
// their start date become active, active auctions past their end date are
// closed and settled. Every pass is idempotent, so a crashed or repeated
// tick never assigns a second winner or double-expires bids.
type Scheduler struct {
	auctions store.AuctionStore
	closer   Closer
	clock    service.Clock

	interval time.Duration
	// lockWait bounds how long a closure waits behind an in-flight bid
	// admission before giving up until the next tick.
	lockWait time.Duration

	// ticks is an optional counter incremented once per tick.
	ticks prometheus.Counter

	stop chan struct{}
	done chan struct{}
}

// SetTickCounter attaches a prometheus counter to the tick loop.
func (s *Scheduler) SetTickCounter(c prometheus.Counter) {
	s.ticks = c
}

// New creates a stopped scheduler. A nil clock means the system clock.
func New(auctions store.AuctionStore, closer Closer, interval time.Duration, clock service.Clock) *Scheduler {
	if clock == nil {
		clock = service.RealClock{}
	}
	return &Scheduler{
		auctions: auctions,
		closer:   closer,
		clock:    clock,
		interval: interval,
		lockWait: 5 * time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called. The loop is serial: a tick
// must finish before the next one is considered, and ticker ticks that fire
// while a tick is still running are dropped, never queued.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)

	// Catch up transitions that came due while the process was down.
	s.Tick(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Tick performs one activation pass and one closure pass. Exported so tests
// drive ticks directly against a fake clock.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.ticks != nil {
		s.ticks.Inc()
	}
	now := s.clock.Now()
	s.activatePass(ctx, now)
	s.closePass(ctx, now)
}

func (s *Scheduler) activatePass(ctx context.Context, now time.Time) {
	due, err := s.auctions.DueForActivation(ctx, now)
	if err != nil {
		log.Printf("[SCHEDULER] activation scan failed: %v", err)
		return
	}

	for _, auction := range due {
		// Activate is guarded by the status predicate in the store, so a
		// concurrent manual transition just makes this a no-op.
		flipped, err := s.auctions.Activate(ctx, auction.ID)
		if err != nil {
			log.Printf("[SCHEDULER] failed to activate auction %s: %v", auction.ID, err)
			continue
		}
		if flipped {
			log.Printf("[SCHEDULER] auction %s activated", auction.ID)
		}
	}
}

func (s *Scheduler) closePass(ctx context.Context, now time.Time) {
	due, err := s.auctions.DueForClosure(ctx, now)
	if err != nil {
		log.Printf("[SCHEDULER] closure scan failed: %v", err)
		return
	}

	for _, auction := range due {
		closeCtx, cancel := context.WithTimeout(ctx, s.lockWait)
		_, err := s.closer.Close(closeCtx, auction.ID)
		cancel()

		switch {
		case err == nil:
			log.Printf("[SCHEDULER] auction %s closed", auction.ID)
		case errors.Is(err, models.ErrAuctionNotActive):
			// Already closed by a manual end or an earlier tick.
		default:
			// One faulty auction must not abort the scan; the next tick
			// retries it.
			log.Printf("[SCHEDULER] failed to close auction %s: %v", auction.ID, err)
		}
	}
}
