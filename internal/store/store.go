package store

import (
	"context"
	"time"

	"github.com/aaronwang/auction-house/internal/models"
)

// AuctionStore owns Auction records. Status flips are guarded by a status
// predicate inside the store (query-guarded, not check-then-act), which is what
// makes scheduler replays idempotent.
type AuctionStore interface {
	Create(ctx context.Context, auction *models.Auction) error
	Get(ctx context.Context, id string) (*models.Auction, error)
	List(ctx context.Context, filter models.AuctionFilter) ([]*models.Auction, int, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*models.Auction, error)

	// Update replaces the mutable listing fields. Callers must only use it on
	// pending auctions.
	Update(ctx context.Context, auction *models.Auction) error
	Delete(ctx context.Context, id string) error

	// UpdateCurrentPrice applies a compare-and-swap on current_price and
	// returns models.ErrConflict when the stored value no longer matches from.
	UpdateCurrentPrice(ctx context.Context, id string, from, to float64) error

	// Activate flips pending->active. Returns false when the auction was not
	// pending (already active or closed).
	Activate(ctx context.Context, id string) (bool, error)

	// CloseAuction flips active->closed and records the winner (empty for no
	// bids). Returns false when the auction was not active.
	CloseAuction(ctx context.Context, id, winnerID string) (bool, error)

	DueForActivation(ctx context.Context, now time.Time) ([]*models.Auction, error)
	DueForClosure(ctx context.Context, now time.Time) ([]*models.Auction, error)
}

// BidLedger owns Bid records. Bids are append-mostly: inserted on admission,
// re-statused on outbidding and at closure, never deleted.
type BidLedger interface {
	// Insert persists a new bid and returns models.ErrDuplicateBid when a bid
	// with the same (auction, bidder, amount) already exists.
	Insert(ctx context.Context, bid *models.Bid) error

	// Exists reports whether a bid with this exact (auction, bidder, amount)
	// tuple is already recorded.
	Exists(ctx context.Context, auctionID, bidderID string, amount float64) (bool, error)

	// SetStatus overwrites a single bid's status.
	SetStatus(ctx context.Context, bidID, status string) error

	// ListByAuction returns all bids for an auction, highest amount first.
	ListByAuction(ctx context.Context, auctionID string) ([]*models.Bid, error)
	ListByBidder(ctx context.Context, bidderID string) ([]*models.Bid, error)
	ListWinningByBidder(ctx context.Context, bidderID string) ([]*models.Bid, error)

	// HighestBid returns the maximum-amount bid for an auction, ties broken by
	// earliest created_at. Returns (nil, nil) when the auction has no bids.
	HighestBid(ctx context.Context, auctionID string) (*models.Bid, error)

	// MarkOutbid moves the bidder's active bids on the auction to outbid,
	// skipping exceptBidID (the bid that superseded them).
	MarkOutbid(ctx context.Context, auctionID, bidderID, exceptBidID string) error

	// SettleClosure marks the winning bid and expires every other bid on the
	// auction. Safe to re-run: already-settled rows match no predicate.
	SettleClosure(ctx context.Context, auctionID, winningBidID string) error
}
