package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/aaronwang/auction-house/internal/models"
	"github.com/aaronwang/auction-house/internal/scheduler"
	"github.com/aaronwang/auction-house/internal/service"
	"github.com/aaronwang/auction-house/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopPublisher struct{}

func (nopPublisher) PublishBidAccepted(ctx context.Context, event *models.BidAcceptedEvent) error {
	return nil
}

func (nopPublisher) PublishAuctionClosed(ctx context.Context, event *models.AuctionClosedEvent) error {
	return nil
}

type fixture struct {
	store     *store.MemoryStore
	clock     *fakeClock
	admission *service.AdmissionService
	auctions  *service.AuctionService
	scheduler *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	locks := service.NewAuctionLocks()
	auctions := service.NewAuctionService(mem, mem, locks, nopPublisher{}, clock)

	return &fixture{
		store:     mem,
		clock:     clock,
		admission: service.NewAdmissionService(mem, mem, locks, nopPublisher{}, nil, clock),
		auctions:  auctions,
		scheduler: scheduler.New(mem, auctions, time.Minute, clock),
	}
}

func (f *fixture) seed(t *testing.T, id, status string, price float64, start, end time.Time) {
	t.Helper()
	err := f.store.Create(context.Background(), &models.Auction{
		ID:            id,
		Title:         "lot " + id,
		Category:      models.CategoryArt,
		StartingPrice: price,
		CurrentPrice:  price,
		Status:        status,
		SellerID:      "seller",
		StartDate:     start,
		EndDate:       end,
	})
	assert.NoError(t, err)
}

func (f *fixture) status(t *testing.T, id string) string {
	t.Helper()
	auction, err := f.store.Get(context.Background(), id)
	assert.NoError(t, err)
	return auction.Status
}

func TestTick_ActivatesDueAuctions(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	f.seed(t, "due", models.AuctionStatusPending, 10, now.Add(-time.Minute), now.Add(time.Hour))
	f.seed(t, "exact", models.AuctionStatusPending, 10, now, now.Add(time.Hour))
	f.seed(t, "future", models.AuctionStatusPending, 10, now.Add(time.Hour), now.Add(2*time.Hour))

	f.scheduler.Tick(context.Background())

	check.Equal(t, models.AuctionStatusActive, f.status(t, "due"))
	// a start date equal to now counts as due
	check.Equal(t, models.AuctionStatusActive, f.status(t, "exact"))
	check.Equal(t, models.AuctionStatusPending, f.status(t, "future"))
}

func TestTick_ClosesDueAuctions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.seed(t, "a1", models.AuctionStatusActive, 10, now.Add(-time.Hour), now.Add(time.Minute))
	_, err := f.admission.SubmitBid(ctx, "a1", "alice", 20)
	assert.NoError(t, err)

	// not due yet
	f.scheduler.Tick(ctx)
	check.Equal(t, models.AuctionStatusActive, f.status(t, "a1"))

	f.clock.Advance(2 * time.Minute)
	f.scheduler.Tick(ctx)

	auction, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusClosed, auction.Status)
	check.Equal(t, "alice", auction.WinnerID)
	check.Equal(t, 20.0, auction.CurrentPrice)
}

func TestTick_RepeatTicksAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.seed(t, "a1", models.AuctionStatusActive, 10, now.Add(-time.Hour), now.Add(-time.Minute))
	_, err := f.admission.SubmitBid(ctx, "a1", "alice", 20)
	// the bid window closed a minute ago
	check.True(t, errors.Is(err, models.ErrAuctionNotActive))

	f.scheduler.Tick(ctx)
	first, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)

	f.clock.Advance(time.Minute)
	f.scheduler.Tick(ctx)
	f.scheduler.Tick(ctx)

	again, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, first.Status, again.Status)
	check.Equal(t, first.WinnerID, again.WinnerID)
	check.Equal(t, first.UpdatedAt, again.UpdatedAt)
}

func TestTick_ActivationThenClosureLifecycle(t *testing.T) {
	// Full lifecycle driven only by the clock: listed pending, activated at
	// start, bid on while active, closed and settled at end.
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.seed(t, "a1", models.AuctionStatusPending, 10, now.Add(30*time.Minute), now.Add(90*time.Minute))

	// bids before activation bounce
	_, err := f.admission.SubmitBid(ctx, "a1", "alice", 20)
	check.True(t, errors.Is(err, models.ErrAuctionNotActive))

	f.clock.Advance(31 * time.Minute)
	f.scheduler.Tick(ctx)
	check.Equal(t, models.AuctionStatusActive, f.status(t, "a1"))

	_, err = f.admission.SubmitBid(ctx, "a1", "alice", 20)
	assert.NoError(t, err)
	_, err = f.admission.SubmitBid(ctx, "a1", "bob", 35)
	assert.NoError(t, err)

	// a late lowball is told what to beat
	_, err = f.admission.SubmitBid(ctx, "a1", "carol", 30)
	var tooLow *models.BidTooLowError
	assert.True(t, errors.As(err, &tooLow))
	check.Equal(t, 35.0, tooLow.CurrentPrice)

	f.clock.Advance(60 * time.Minute)
	f.scheduler.Tick(ctx)

	auction, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusClosed, auction.Status)
	check.Equal(t, "bob", auction.WinnerID)
	check.Equal(t, 35.0, auction.CurrentPrice)

	bids, err := f.store.ListByAuction(ctx, "a1")
	assert.NoError(t, err)
	winners := 0
	for _, b := range bids {
		if b.Status == models.BidStatusWinning {
			winners++
		}
	}
	check.Equal(t, 1, winners)
}

func TestTick_ZeroBidClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.seed(t, "a1", models.AuctionStatusActive, 10, now.Add(-2*time.Hour), now.Add(-time.Hour))

	f.scheduler.Tick(ctx)

	auction, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusClosed, auction.Status)
	check.Equal(t, "", auction.WinnerID)
	check.Equal(t, 10.0, auction.CurrentPrice)
}

func TestTick_ManualEndBeforeTick(t *testing.T) {
	// A manual end racing the closure pass: the tick finds the auction
	// already closed and leaves it alone.
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.seed(t, "a1", models.AuctionStatusActive, 10, now.Add(-time.Hour), now.Add(-time.Minute))
	_, err := f.auctions.End(ctx, "a1", "seller", false)
	assert.NoError(t, err)
	ended, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)

	f.scheduler.Tick(ctx)

	after, err := f.store.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, ended.UpdatedAt, after.UpdatedAt)
}

// faultyCloser fails for one auction and delegates the rest.
type faultyCloser struct {
	inner  scheduler.Closer
	failID string
}

func (c *faultyCloser) Close(ctx context.Context, auctionID string) (*models.Auction, error) {
	if auctionID == c.failID {
		return nil, errors.New("settlement hiccup")
	}
	return c.inner.Close(ctx, auctionID)
}

func TestTick_FaultIsolation(t *testing.T) {
	// One auction failing to close must not stop the rest of the pass, and
	// the failed one stays eligible for the next tick.
	mem := store.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	locks := service.NewAuctionLocks()
	auctions := service.NewAuctionService(mem, mem, locks, nopPublisher{}, clock)
	closer := &faultyCloser{inner: auctions, failID: "bad"}
	sched := scheduler.New(mem, closer, time.Minute, clock)

	ctx := context.Background()
	now := clock.Now()
	for _, id := range []string{"bad", "good1", "good2"} {
		err := mem.Create(ctx, &models.Auction{
			ID:            id,
			Title:         "lot " + id,
			Category:      models.CategoryOther,
			StartingPrice: 10,
			CurrentPrice:  10,
			Status:        models.AuctionStatusActive,
			SellerID:      "seller",
			StartDate:     now.Add(-time.Hour),
			EndDate:       now.Add(-time.Minute),
		})
		assert.NoError(t, err)
	}

	sched.Tick(ctx)

	for _, id := range []string{"good1", "good2"} {
		auction, err := mem.Get(ctx, id)
		assert.NoError(t, err)
		check.Equal(t, models.AuctionStatusClosed, auction.Status)
	}
	bad, err := mem.Get(ctx, "bad")
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusActive, bad.Status)

	// the hiccup clears; the next tick picks it up
	closer.failID = ""
	clock.Advance(time.Minute)
	sched.Tick(ctx)
	bad, err = mem.Get(ctx, "bad")
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusClosed, bad.Status)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	f.seed(t, "a1", models.AuctionStatusPending, 10, now.Add(-time.Minute), now.Add(time.Hour))

	// Start performs an immediate catch-up tick before the first interval.
	f.scheduler.Start()
	deadline := time.Now().Add(2 * time.Second)
	for f.status(t, "a1") != models.AuctionStatusActive {
		if time.Now().After(deadline) {
			t.Fatal("auction was not activated by the catch-up tick")
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.scheduler.Stop()
}
