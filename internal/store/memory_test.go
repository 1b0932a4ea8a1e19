package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/aaronwang/auction-house/internal/models"
	"github.com/aaronwang/auction-house/internal/store"
)

func seedAuction(t *testing.T, s *store.MemoryStore, id, status string, price float64) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := s.Create(context.Background(), &models.Auction{
		ID:            id,
		Title:         "lot " + id,
		Category:      models.CategoryOther,
		StartingPrice: price,
		CurrentPrice:  price,
		Status:        status,
		SellerID:      "seller",
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		CreatedAt:     now,
	})
	assert.NoError(t, err)
}

func TestUpdateCurrentPrice_CAS(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedAuction(t, s, "a1", models.AuctionStatusActive, 10)

	assert.NoError(t, s.UpdateCurrentPrice(ctx, "a1", 10, 15))

	// a swap against a stale observed price conflicts
	err := s.UpdateCurrentPrice(ctx, "a1", 10, 20)
	check.True(t, errors.Is(err, models.ErrConflict))

	// the losing swap changed nothing
	auction, err := s.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, 15.0, auction.CurrentPrice)

	err = s.UpdateCurrentPrice(ctx, "missing", 10, 20)
	check.True(t, errors.Is(err, models.ErrNotFound))
}

func TestInsert_DuplicateBid(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	bid := &models.Bid{
		ID: "b1", AuctionID: "a1", BidderID: "alice", Amount: 15,
		Status: models.BidStatusActive,
	}
	assert.NoError(t, s.Insert(ctx, bid))

	// same (auction, bidder, amount) under a fresh id
	dup := &models.Bid{
		ID: "b2", AuctionID: "a1", BidderID: "alice", Amount: 15,
		Status: models.BidStatusActive,
	}
	err := s.Insert(ctx, dup)
	check.True(t, errors.Is(err, models.ErrDuplicateBid))

	// different bidder or amount is fine
	assert.NoError(t, s.Insert(ctx, &models.Bid{
		ID: "b3", AuctionID: "a1", BidderID: "bob", Amount: 15,
	}))
	assert.NoError(t, s.Insert(ctx, &models.Bid{
		ID: "b4", AuctionID: "a1", BidderID: "alice", Amount: 16,
	}))

	exists, err := s.Exists(ctx, "a1", "alice", 15)
	assert.NoError(t, err)
	check.True(t, exists)
	exists, err = s.Exists(ctx, "a1", "carol", 15)
	assert.NoError(t, err)
	check.False(t, exists)
}

func TestHighestBid(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	highest, err := s.HighestBid(ctx, "a1")
	assert.NoError(t, err)
	check.Nil(t, highest)

	assert.NoError(t, s.Insert(ctx, &models.Bid{
		ID: "b1", AuctionID: "a1", BidderID: "alice", Amount: 20,
		Status: models.BidStatusActive, CreatedAt: base,
	}))
	assert.NoError(t, s.Insert(ctx, &models.Bid{
		ID: "b2", AuctionID: "a1", BidderID: "bob", Amount: 20,
		Status: models.BidStatusActive, CreatedAt: base.Add(time.Second),
	}))
	assert.NoError(t, s.Insert(ctx, &models.Bid{
		ID: "b3", AuctionID: "a1", BidderID: "carol", Amount: 15,
		Status: models.BidStatusActive, CreatedAt: base.Add(2 * time.Second),
	}))

	// ties resolve to the earliest bid at the amount
	highest, err = s.HighestBid(ctx, "a1")
	assert.NoError(t, err)
	assert.NotNil(t, highest)
	check.Equal(t, "b1", highest.ID)

	// rejected bids never win
	assert.NoError(t, s.Insert(ctx, &models.Bid{
		ID: "b5", AuctionID: "a1", BidderID: "dave", Amount: 99,
		Status: models.BidStatusRejected, CreatedAt: base,
	}))
	highest, err = s.HighestBid(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, "b1", highest.ID)
}

func TestSettleClosure(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for _, b := range []*models.Bid{
		{ID: "w", AuctionID: "a1", BidderID: "alice", Amount: 30, Status: models.BidStatusActive},
		{ID: "o", AuctionID: "a1", BidderID: "alice", Amount: 20, Status: models.BidStatusOutbid},
		{ID: "x", AuctionID: "a1", BidderID: "bob", Amount: 25, Status: models.BidStatusActive},
		{ID: "r", AuctionID: "a1", BidderID: "carol", Amount: 26, Status: models.BidStatusRejected},
		{ID: "other", AuctionID: "a2", BidderID: "dave", Amount: 5, Status: models.BidStatusActive},
	} {
		assert.NoError(t, s.Insert(ctx, b))
	}

	assert.NoError(t, s.SettleClosure(ctx, "a1", "w"))

	want := map[string]string{
		"w":     models.BidStatusWinning,
		"o":     models.BidStatusExpired,
		"x":     models.BidStatusExpired,
		"r":     models.BidStatusRejected, // rejected bids stay rejected
		"other": models.BidStatusActive,   // other auctions untouched
	}
	var all []*models.Bid
	for _, auctionID := range []string{"a1", "a2"} {
		bids, err := s.ListByAuction(ctx, auctionID)
		assert.NoError(t, err)
		all = append(all, bids...)
	}
	assert.Equal(t, len(want), len(all))
	for _, b := range all {
		check.Equal(t, want[b.ID], b.Status)
	}
}

func TestStatusGuards(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedAuction(t, s, "a1", models.AuctionStatusPending, 10)

	flipped, err := s.Activate(ctx, "a1")
	assert.NoError(t, err)
	check.True(t, flipped)

	// second activation is a guarded no-op
	flipped, err = s.Activate(ctx, "a1")
	assert.NoError(t, err)
	check.False(t, flipped)

	flipped, err = s.CloseAuction(ctx, "a1", "alice")
	assert.NoError(t, err)
	check.True(t, flipped)

	flipped, err = s.CloseAuction(ctx, "a1", "bob")
	assert.NoError(t, err)
	check.False(t, flipped)

	// the losing close did not overwrite the winner
	auction, err := s.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, "alice", auction.WinnerID)
}

func TestUpdateDelete_PendingOnly(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedAuction(t, s, "a1", models.AuctionStatusPending, 10)

	// An edit read while the auction was pending loses to a concurrent
	// activation and accepted bid: the guarded write refuses the stale copy.
	stale, err := s.Get(ctx, "a1")
	assert.NoError(t, err)
	stale.StartingPrice = 12
	stale.CurrentPrice = 12

	flipped, err := s.Activate(ctx, "a1")
	assert.NoError(t, err)
	check.True(t, flipped)
	assert.NoError(t, s.UpdateCurrentPrice(ctx, "a1", 10, 50))

	err = s.Update(ctx, stale)
	check.True(t, errors.Is(err, models.ErrNotPending))

	auction, err := s.Get(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, 50.0, auction.CurrentPrice)

	// Same guard on delete: an active auction is permanent.
	err = s.Delete(ctx, "a1")
	check.True(t, errors.Is(err, models.ErrNotPending))
	_, err = s.Get(ctx, "a1")
	assert.NoError(t, err)

	err = s.Delete(ctx, "missing")
	check.True(t, errors.Is(err, models.ErrNotFound))
}

func TestDueQueries(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id, status string, start, end time.Time) {
		assert.NoError(t, s.Create(ctx, &models.Auction{
			ID: id, Title: id, Category: models.CategoryOther,
			Status: status, SellerID: "seller",
			StartDate: start, EndDate: end,
		}))
	}
	mk("p-due", models.AuctionStatusPending, now.Add(-time.Minute), now.Add(time.Hour))
	mk("p-later", models.AuctionStatusPending, now.Add(time.Minute), now.Add(time.Hour))
	mk("a-due", models.AuctionStatusActive, now.Add(-time.Hour), now.Add(-time.Minute))
	mk("a-later", models.AuctionStatusActive, now.Add(-time.Hour), now.Add(time.Minute))
	mk("closed", models.AuctionStatusClosed, now.Add(-time.Hour), now.Add(-time.Minute))

	due, err := s.DueForActivation(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(due))
	check.Equal(t, "p-due", due[0].ID)

	due, err = s.DueForClosure(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(due))
	check.Equal(t, "a-due", due[0].ID)
}

func TestList_Filters(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id, title, category, status string, created time.Time) {
		assert.NoError(t, s.Create(ctx, &models.Auction{
			ID: id, Title: title, Category: category, Status: status,
			SellerID: "seller", CreatedAt: created,
			StartDate: base, EndDate: base.Add(time.Hour),
		}))
	}
	mk("a1", "vintage camera", models.CategoryElectronics, models.AuctionStatusActive, base)
	mk("a2", "oil painting", models.CategoryArt, models.AuctionStatusActive, base.Add(time.Minute))
	mk("a3", "camera lens", models.CategoryElectronics, models.AuctionStatusClosed, base.Add(2*time.Minute))

	list, total, err := s.List(ctx, models.AuctionFilter{Status: models.AuctionStatusActive})
	assert.NoError(t, err)
	check.Equal(t, 2, total)
	check.Equal(t, 2, len(list))

	list, total, err = s.List(ctx, models.AuctionFilter{Keyword: "CAMERA"})
	assert.NoError(t, err)
	check.Equal(t, 2, total)
	// newest first
	check.Equal(t, "a3", list[0].ID)

	list, total, err = s.List(ctx, models.AuctionFilter{Category: models.CategoryElectronics, Limit: 1, Offset: 1})
	assert.NoError(t, err)
	check.Equal(t, 2, total)
	assert.Equal(t, 1, len(list))
	check.Equal(t, "a1", list[0].ID)
}
