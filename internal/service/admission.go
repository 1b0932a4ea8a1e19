package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/aaronwang/auction-house/internal/events"
	"github.com/aaronwang/auction-house/internal/models"
	"github.com/aaronwang/auction-house/internal/store"
)

// PriceCache is an optional hot cache of an auction's current price, used to
// reject obviously-too-low bids before taking the auction lock. A miss or
// cache error never rejects a bid on its own.
type PriceCache interface {
	Get(ctx context.Context, auctionID string) (price float64, ok bool, err error)
	Set(ctx context.Context, auctionID string, price float64) error
}

// AdmissionService validates and atomically accepts bids against an
// auction's current state.
type AdmissionService struct {
	auctions  store.AuctionStore
	bids      store.BidLedger
	locks     *AuctionLocks
	publisher events.Publisher
	cache     PriceCache // may be nil
	clock     Clock
}

// NewAdmissionService creates a bid admission service. cache may be nil.
func NewAdmissionService(
	auctions store.AuctionStore,
	bids store.BidLedger,
	locks *AuctionLocks,
	publisher events.Publisher,
	cache PriceCache,
	clock Clock,
) *AdmissionService {
	if clock == nil {
		clock = RealClock{}
	}
	return &AdmissionService{
		auctions:  auctions,
		bids:      bids,
		locks:     locks,
		publisher: publisher,
		cache:     cache,
		clock:     clock,
	}
}

// SubmitBid runs the full admission sequence for one bid:
//
//  1. amount > 0
//  2. auction exists
//  3. auction is active and now is within [start, end]
//  4. bidder is not the seller
//  5. amount exceeds the current price
//  6. the same (auction, bidder, amount) was not bid before
//
// then, still holding the auction's lock, persists the bid, marks the
// bidder's prior active bids outbid, and bumps current_price with a
// compare-and-swap. The bid-accepted event is published after the writes
// commit.
func (s *AdmissionService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount float64) (*models.Bid, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	// Cache prefilter: cheap rejection without contending on the lock. The
	// cache may be stale, so a low-looking bid is verified against the store
	// before rejecting.
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, auctionID); err == nil && ok && amount <= cached {
			auction, err := s.auctions.Get(ctx, auctionID)
			if err != nil {
				return nil, err
			}
			if auction.CurrentPrice != cached {
				if err := s.cache.Set(ctx, auctionID, auction.CurrentPrice); err != nil {
					log.Printf("[CACHE] failed to refresh price for auction %s: %v", auctionID, err)
				}
			}
			// The prefilter rejects in the same order as the locked path so a
			// warm cache never changes which error a caller sees.
			now := s.clock.Now()
			if auction.Status == models.AuctionStatusActive && !now.Before(auction.StartDate) && !now.After(auction.EndDate) {
				if bidderID == auction.SellerID {
					return nil, models.ErrSelfBid
				}
				if amount <= auction.CurrentPrice {
					return nil, &models.BidTooLowError{CurrentPrice: auction.CurrentPrice}
				}
			}
		}
	}

	release, err := s.locks.Acquire(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire auction lock: %w", err)
	}
	defer release()

	auction, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if auction.Status != models.AuctionStatusActive || now.Before(auction.StartDate) || now.After(auction.EndDate) {
		return nil, models.ErrAuctionNotActive
	}
	if bidderID == auction.SellerID {
		return nil, models.ErrSelfBid
	}
	if amount <= auction.CurrentPrice {
		return nil, &models.BidTooLowError{CurrentPrice: auction.CurrentPrice}
	}
	dup, err := s.bids.Exists(ctx, auctionID, bidderID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate bid: %w", err)
	}
	if dup {
		return nil, models.ErrDuplicateBid
	}

	bid := &models.Bid{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    models.BidStatusActive,
		CreatedAt: now,
	}
	if err := s.bids.Insert(ctx, bid); err != nil {
		return nil, err
	}
	if err := s.bids.MarkOutbid(ctx, auctionID, bidderID, bid.ID); err != nil {
		return nil, fmt.Errorf("failed to mark prior bids outbid: %w", err)
	}

	previous := auction.CurrentPrice
	if err := s.swapPrice(ctx, auction, bid); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, auctionID, amount); err != nil {
			log.Printf("[CACHE] failed to update price for auction %s: %v", auctionID, err)
		}
	}

	event := &models.BidAcceptedEvent{
		EventID:       uuid.New().String(),
		Type:          models.EventTypeBidAccepted,
		AuctionID:     auctionID,
		BidID:         bid.ID,
		BidderID:      bidderID,
		Amount:        amount,
		PreviousPrice: previous,
		Timestamp:     now,
	}
	if err := s.publisher.PublishBidAccepted(ctx, event); err != nil {
		// Best effort: the bid is committed, subscribers reconcile on reconnect.
		log.Printf("[ADMISSION] failed to publish bid-accepted for auction %s: %v", auctionID, err)
	}

	return bid, nil
}

// swapPrice applies the current_price compare-and-swap. With the auction lock
// held a conflict means another process moved the price; the state is re-read
// and validation resumes from the price check, once.
func (s *AdmissionService) swapPrice(ctx context.Context, auction *models.Auction, bid *models.Bid) error {
	err := s.auctions.UpdateCurrentPrice(ctx, auction.ID, auction.CurrentPrice, bid.Amount)
	if !errors.Is(err, models.ErrConflict) {
		return err
	}

	fresh, err := s.auctions.Get(ctx, auction.ID)
	if err != nil {
		return err
	}
	if fresh.Status != models.AuctionStatusActive {
		s.reject(ctx, bid)
		return models.ErrAuctionNotActive
	}
	if bid.Amount <= fresh.CurrentPrice {
		s.reject(ctx, bid)
		return &models.BidTooLowError{CurrentPrice: fresh.CurrentPrice}
	}
	if err := s.auctions.UpdateCurrentPrice(ctx, auction.ID, fresh.CurrentPrice, bid.Amount); err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.reject(ctx, bid)
		}
		return err
	}
	return nil
}

// reject parks a bid that lost its race. Bids are never deleted.
func (s *AdmissionService) reject(ctx context.Context, bid *models.Bid) {
	if err := s.bids.SetStatus(ctx, bid.ID, models.BidStatusRejected); err != nil {
		log.Printf("[ADMISSION] failed to reject bid %s: %v", bid.ID, err)
	}
}
