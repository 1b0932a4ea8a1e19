package models

import "time"

// Bid represents a single bid on an auction
type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"` // "active", "winning", "outbid", "rejected", "expired"
	CreatedAt time.Time `json:"created_at"`
}

// BidStatus constants
const (
	BidStatusActive   = "active"
	BidStatusWinning  = "winning"
	BidStatusOutbid   = "outbid"
	BidStatusRejected = "rejected"
	BidStatusExpired  = "expired"
)

// BidRequest represents the incoming bid request from API.
// The bidder identity comes from the auth layer, not the body.
type BidRequest struct {
	AuctionID string  `json:"auction_id"`
	Amount    float64 `json:"amount"`
}
