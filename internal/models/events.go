package models

import "time"

// Event type constants
const (
	EventTypeBidAccepted   = "bid-accepted"
	EventTypeAuctionClosed = "auction-closed"
)

// BidAcceptedEvent is published after a bid commits.
// Consumers: websocket broadcast rooms and the audit worker.
type BidAcceptedEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	AuctionID     string    `json:"auction_id"`
	BidID         string    `json:"bid_id"`
	BidderID      string    `json:"bidder_id"`
	Amount        float64   `json:"amount"`
	PreviousPrice float64   `json:"previous_price"`
	Timestamp     time.Time `json:"timestamp"`
}

// AuctionClosedEvent is published after an auction closes, whether by the
// scheduler or by a manual end action.
type AuctionClosedEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	AuctionID  string    `json:"auction_id"`
	WinnerID   string    `json:"winner_id,omitempty"`
	FinalPrice float64   `json:"final_price"`
	Timestamp  time.Time `json:"timestamp"`
}
