package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aaronwang/auction-house/internal/models"
)

// LocalPublisher delivers events straight to a Sink without a broker. Used
// when NATS is not configured (single-process deployments, tests).
type LocalPublisher struct {
	sink Sink
}

// NewLocalPublisher creates a publisher that feeds the given sink directly.
func NewLocalPublisher(sink Sink) *LocalPublisher {
	return &LocalPublisher{sink: sink}
}

func (p *LocalPublisher) PublishBidAccepted(ctx context.Context, event *models.BidAcceptedEvent) error {
	return p.publish(event.AuctionID, event)
}

func (p *LocalPublisher) PublishAuctionClosed(ctx context.Context, event *models.AuctionClosedEvent) error {
	return p.publish(event.AuctionID, event)
}

func (p *LocalPublisher) publish(auctionID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	p.sink.Publish(auctionID, data)
	return nil
}
