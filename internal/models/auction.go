package models

import "time"

// Auction represents a timed auction listing
type Auction struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	StartingPrice float64   `json:"starting_price"`
	CurrentPrice  float64   `json:"current_price"`
	Status        string    `json:"status"` // "pending", "active", "closed"
	SellerID      string    `json:"seller_id"`
	WinnerID      string    `json:"winner_id,omitempty"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AuctionStatus constants
const (
	AuctionStatusPending = "pending"
	AuctionStatusActive  = "active"
	AuctionStatusClosed  = "closed"
)

// Auction categories (closed set)
const (
	CategoryElectronics  = "electronics"
	CategoryFashion      = "fashion"
	CategoryHome         = "home"
	CategoryVehicles     = "vehicles"
	CategoryArt          = "art"
	CategoryCollectibles = "collectibles"
	CategoryOther        = "other"
)

// ValidCategory reports whether c belongs to the closed category set.
func ValidCategory(c string) bool {
	switch c {
	case CategoryElectronics, CategoryFashion, CategoryHome,
		CategoryVehicles, CategoryArt, CategoryCollectibles, CategoryOther:
		return true
	}
	return false
}

// AuctionRequest represents the incoming create/update request from API
type AuctionRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	StartingPrice float64   `json:"starting_price"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// AuctionFilter narrows List queries
type AuctionFilter struct {
	Status   string
	Category string
	Keyword  string // case-insensitive substring match on title
	Limit    int
	Offset   int
}
