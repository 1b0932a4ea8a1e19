package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aaronwang/auction-house/internal/models"
)

// MemoryStore implements AuctionStore and BidLedger on in-process maps.
// It backs STORAGE_BACKEND=memory for local runs and all unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*models.Auction
	bids     map[string]*models.Bid
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*models.Auction),
		bids:     make(map[string]*models.Bid),
	}
}

func (s *MemoryStore) Create(ctx context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *auction
	s.auctions[auction.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *auction
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, filter models.AuctionFilter) ([]*models.Auction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Auction
	for _, auction := range s.auctions {
		if filter.Status != "" && auction.Status != filter.Status {
			continue
		}
		if filter.Category != "" && auction.Category != filter.Category {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(strings.ToLower(auction.Title), strings.ToLower(filter.Keyword)) {
			continue
		}
		cp := *auction
		matched = append(matched, &cp)
	}

	// Newest first, matching the postgres ORDER BY
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) ListBySeller(ctx context.Context, sellerID string) ([]*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Auction
	for _, auction := range s.auctions {
		if auction.SellerID == sellerID {
			cp := *auction
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.auctions[auction.ID]
	if !ok {
		return models.ErrNotFound
	}
	if existing.Status != models.AuctionStatusPending {
		return models.ErrNotPending
	}
	cp := *auction
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.auctions[auction.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return models.ErrNotFound
	}
	if auction.Status != models.AuctionStatusPending {
		return models.ErrNotPending
	}
	delete(s.auctions, id)
	return nil
}

func (s *MemoryStore) UpdateCurrentPrice(ctx context.Context, id string, from, to float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return models.ErrNotFound
	}
	if auction.CurrentPrice != from {
		return models.ErrConflict
	}
	auction.CurrentPrice = to
	auction.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Activate(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if auction.Status != models.AuctionStatusPending {
		return false, nil
	}
	auction.Status = models.AuctionStatusActive
	auction.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) CloseAuction(ctx context.Context, id, winnerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if auction.Status != models.AuctionStatusActive {
		return false, nil
	}
	auction.Status = models.AuctionStatusClosed
	auction.WinnerID = winnerID
	auction.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) DueForActivation(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.Auction
	for _, auction := range s.auctions {
		if auction.Status == models.AuctionStatusPending && !auction.StartDate.After(now) {
			cp := *auction
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (s *MemoryStore) DueForClosure(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.Auction
	for _, auction := range s.auctions {
		if auction.Status == models.AuctionStatusActive && !auction.EndDate.After(now) {
			cp := *auction
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (s *MemoryStore) Insert(ctx context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bids {
		if existing.AuctionID == bid.AuctionID &&
			existing.BidderID == bid.BidderID &&
			existing.Amount == bid.Amount {
			return models.ErrDuplicateBid
		}
	}
	cp := *bid
	s.bids[bid.ID] = &cp
	return nil
}

func (s *MemoryStore) ListByAuction(ctx context.Context, auctionID string) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Bid
	for _, bid := range s.bids {
		if bid.AuctionID == auctionID {
			cp := *bid
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Amount > out[j].Amount
	})
	return out, nil
}

func (s *MemoryStore) ListByBidder(ctx context.Context, bidderID string) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Bid
	for _, bid := range s.bids {
		if bid.BidderID == bidderID {
			cp := *bid
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListWinningByBidder(ctx context.Context, bidderID string) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Bid
	for _, bid := range s.bids {
		if bid.BidderID == bidderID && bid.Status == models.BidStatusWinning {
			cp := *bid
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) HighestBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest *models.Bid
	for _, bid := range s.bids {
		if bid.AuctionID != auctionID || bid.Status == models.BidStatusRejected {
			continue
		}
		if highest == nil ||
			bid.Amount > highest.Amount ||
			(bid.Amount == highest.Amount && bid.CreatedAt.Before(highest.CreatedAt)) {
			highest = bid
		}
	}
	if highest == nil {
		return nil, nil
	}
	cp := *highest
	return &cp, nil
}

func (s *MemoryStore) Exists(ctx context.Context, auctionID, bidderID string, amount float64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, bid := range s.bids {
		if bid.AuctionID == auctionID && bid.BidderID == bidderID && bid.Amount == amount {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, bidID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return models.ErrNotFound
	}
	bid.Status = status
	return nil
}

func (s *MemoryStore) MarkOutbid(ctx context.Context, auctionID, bidderID, exceptBidID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bid := range s.bids {
		if bid.ID == exceptBidID {
			continue
		}
		if bid.AuctionID == auctionID && bid.BidderID == bidderID && bid.Status == models.BidStatusActive {
			bid.Status = models.BidStatusOutbid
		}
	}
	return nil
}

func (s *MemoryStore) SettleClosure(ctx context.Context, auctionID, winningBidID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bid := range s.bids {
		if bid.AuctionID != auctionID {
			continue
		}
		if bid.ID == winningBidID {
			bid.Status = models.BidStatusWinning
		} else if bid.Status == models.BidStatusActive || bid.Status == models.BidStatusOutbid {
			bid.Status = models.BidStatusExpired
		}
	}
	return nil
}
