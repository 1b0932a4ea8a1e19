package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aaronwang/auction-house/internal/events"
	"github.com/aaronwang/auction-house/internal/models"
	"github.com/aaronwang/auction-house/internal/store"
)

// AuctionService handles the auction listing lifecycle: create, edit and
// delete while pending, reads, and closure (manual and scheduled).
type AuctionService struct {
	auctions  store.AuctionStore
	bids      store.BidLedger
	locks     *AuctionLocks
	publisher events.Publisher
	clock     Clock
}

// NewAuctionService creates an auction service.
func NewAuctionService(
	auctions store.AuctionStore,
	bids store.BidLedger,
	locks *AuctionLocks,
	publisher events.Publisher,
	clock Clock,
) *AuctionService {
	if clock == nil {
		clock = RealClock{}
	}
	return &AuctionService{
		auctions:  auctions,
		bids:      bids,
		locks:     locks,
		publisher: publisher,
		clock:     clock,
	}
}

// Create lists a new auction for the seller. Auctions start pending; the
// scheduler activates them once the start date passes.
func (s *AuctionService) Create(ctx context.Context, sellerID string, req *models.AuctionRequest) (*models.Auction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = now
	}

	auction := &models.Auction{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		Status:        models.AuctionStatusPending,
		SellerID:      sellerID,
		StartDate:     startDate,
		EndDate:       req.EndDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.auctions.Create(ctx, auction); err != nil {
		return nil, err
	}
	return auction, nil
}

// Get returns the auction and its most recent bids (highest first, capped).
func (s *AuctionService) Get(ctx context.Context, id string) (*models.Auction, []*models.Bid, error) {
	auction, err := s.auctions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	bids, err := s.bids.ListByAuction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(bids) > 10 {
		bids = bids[:10]
	}
	return auction, bids, nil
}

// List returns auctions matching the filter plus the unfiltered match count
// for pagination.
func (s *AuctionService) List(ctx context.Context, filter models.AuctionFilter) ([]*models.Auction, int, error) {
	return s.auctions.List(ctx, filter)
}

// ListBySeller returns the seller's own auctions.
func (s *AuctionService) ListBySeller(ctx context.Context, sellerID string) ([]*models.Auction, error) {
	return s.auctions.ListBySeller(ctx, sellerID)
}

// Update edits a listing. Only the seller may edit, and only while pending.
func (s *AuctionService) Update(ctx context.Context, id, userID string, req *models.AuctionRequest) (*models.Auction, error) {
	auction, err := s.auctions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != userID {
		return nil, models.ErrUnauthorized
	}
	if auction.Status != models.AuctionStatusPending {
		return nil, models.ErrNotPending
	}

	if req.Title != "" {
		auction.Title = req.Title
	}
	if req.Description != "" {
		auction.Description = req.Description
	}
	if req.Category != "" {
		if !models.ValidCategory(req.Category) {
			return nil, models.ErrInvalidAuction
		}
		auction.Category = req.Category
	}
	if req.StartingPrice > 0 {
		auction.StartingPrice = req.StartingPrice
		auction.CurrentPrice = req.StartingPrice
	}
	if !req.StartDate.IsZero() {
		auction.StartDate = req.StartDate
	}
	if !req.EndDate.IsZero() {
		auction.EndDate = req.EndDate
	}
	if !auction.EndDate.After(auction.StartDate) {
		return nil, models.ErrInvalidAuction
	}

	if err := s.auctions.Update(ctx, auction); err != nil {
		return nil, err
	}
	return auction, nil
}

// Delete removes a listing. Only the seller or an admin may delete, and only
// while pending; active and closed auctions are permanent.
func (s *AuctionService) Delete(ctx context.Context, id, userID string, isAdmin bool) error {
	auction, err := s.auctions.Get(ctx, id)
	if err != nil {
		return err
	}
	if auction.SellerID != userID && !isAdmin {
		return models.ErrUnauthorized
	}
	if auction.Status != models.AuctionStatusPending {
		return models.ErrNotPending
	}
	return s.auctions.Delete(ctx, id)
}

// ActivateNow flips a pending auction to active ahead of its start date.
// Restricted to the seller.
func (s *AuctionService) ActivateNow(ctx context.Context, id, userID string) (*models.Auction, error) {
	auction, err := s.auctions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != userID {
		return nil, models.ErrUnauthorized
	}
	flipped, err := s.auctions.Activate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, models.ErrNotPending
	}
	return s.auctions.Get(ctx, id)
}

func validateRequest(req *models.AuctionRequest) error {
	if req.Title == "" || req.StartingPrice < 0 {
		return models.ErrInvalidAuction
	}
	if !models.ValidCategory(req.Category) {
		return models.ErrInvalidAuction
	}
	if req.EndDate.IsZero() {
		return models.ErrInvalidAuction
	}
	start := req.StartDate
	if !start.IsZero() && !req.EndDate.After(start) {
		return models.ErrInvalidAuction
	}
	return nil
}
