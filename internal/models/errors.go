package models

import (
	"errors"
	"fmt"
)

// Domain errors returned by services and stores. Handlers map these to HTTP
// statuses; everything else is treated as internal.
var (
	ErrInvalidAmount    = errors.New("bid amount must be greater than 0")
	ErrNotFound         = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrSelfBid          = errors.New("cannot bid on your own auction")
	ErrDuplicateBid     = errors.New("a bid with this amount already exists")
	ErrConflict         = errors.New("bid lost a concurrent update, retry")
	ErrUnauthorized     = errors.New("not authorized")
	ErrNotPending       = errors.New("auction is no longer pending")
	ErrInvalidAuction   = errors.New("invalid auction parameters")
)

// BidTooLowError carries the current price so the caller can retry with a
// valid amount.
type BidTooLowError struct {
	CurrentPrice float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount must be higher than current price (%.2f)", e.CurrentPrice)
}
