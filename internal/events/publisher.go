package events

import (
	"context"

	"github.com/aaronwang/auction-house/internal/models"
)

// Publisher delivers committed auction events to interested consumers.
// Implementations are best-effort: callers log failures and never roll back
// the state mutation that already committed.
type Publisher interface {
	PublishBidAccepted(ctx context.Context, event *models.BidAcceptedEvent) error
	PublishAuctionClosed(ctx context.Context, event *models.AuctionClosedEvent) error
}

// Sink receives raw event payloads grouped by auction id. The websocket hub
// implements this.
type Sink interface {
	Publish(auctionID string, payload []byte)
}
