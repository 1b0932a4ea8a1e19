package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/aaronwang/auction-house/internal/models"
)

// Close finalizes an auction: picks the winner from the ledger, settles bid
// statuses, flips the auction to closed, and publishes auction-closed. It is
// the single closure code path: the scheduler's closure pass and the manual
// end action both land here, so the two can never drift apart.
//
// Closing an auction that is no longer active returns ErrAuctionNotActive;
// the scheduler treats that as the idempotent no-op it is.
func (s *AuctionService) Close(ctx context.Context, auctionID string) (*models.Auction, error) {
	release, err := s.locks.Acquire(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire auction lock: %w", err)
	}
	defer release()

	auction, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != models.AuctionStatusActive {
		return nil, models.ErrAuctionNotActive
	}

	// Highest amount wins; ties go to the earliest bidder at that amount.
	highest, err := s.bids.HighestBid(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find highest bid: %w", err)
	}

	winnerID := ""
	if highest != nil {
		winnerID = highest.BidderID
		if err := s.bids.SettleClosure(ctx, auctionID, highest.ID); err != nil {
			return nil, fmt.Errorf("failed to settle bids: %w", err)
		}
	}

	// The status flip is the commit point. Its status guard makes a repeat
	// closure a no-op even if settlement above ran twice.
	flipped, err := s.auctions.CloseAuction(ctx, auctionID, winnerID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, models.ErrAuctionNotActive
	}

	closed, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	event := &models.AuctionClosedEvent{
		EventID:    uuid.New().String(),
		Type:       models.EventTypeAuctionClosed,
		AuctionID:  auctionID,
		WinnerID:   winnerID,
		FinalPrice: closed.CurrentPrice,
		Timestamp:  s.clock.Now(),
	}
	if err := s.publisher.PublishAuctionClosed(ctx, event); err != nil {
		log.Printf("[CLOSER] failed to publish auction-closed for auction %s: %v", auctionID, err)
	}

	return closed, nil
}

// End is the manual "end auction" action, restricted to the seller or an
// admin and to auctions currently active. It reuses Close verbatim.
func (s *AuctionService) End(ctx context.Context, auctionID, userID string, isAdmin bool) (*models.Auction, error) {
	auction, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != userID && !isAdmin {
		return nil, models.ErrUnauthorized
	}
	return s.Close(ctx, auctionID)
}
