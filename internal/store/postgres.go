package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aaronwang/auction-house/internal/models"
)

// PostgresStore implements AuctionStore and BidLedger on a shared PostgreSQL
// connection pool.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and verifies a PostgreSQL connection.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const auctionColumns = `id, title, description, category, starting_price, current_price,
	status, seller_id, COALESCE(winner_id, ''), start_date, end_date, created_at, updated_at`

func scanAuction(row interface{ Scan(...any) error }) (*models.Auction, error) {
	auction := &models.Auction{}
	err := row.Scan(
		&auction.ID,
		&auction.Title,
		&auction.Description,
		&auction.Category,
		&auction.StartingPrice,
		&auction.CurrentPrice,
		&auction.Status,
		&auction.SellerID,
		&auction.WinnerID,
		&auction.StartDate,
		&auction.EndDate,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	return auction, err
}

func (s *PostgresStore) Create(ctx context.Context, auction *models.Auction) error {
	query := `
		INSERT INTO auctions (id, title, description, category, starting_price, current_price,
			status, seller_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		auction.ID,
		auction.Title,
		auction.Description,
		auction.Category,
		auction.StartingPrice,
		auction.CurrentPrice,
		auction.Status,
		auction.SellerID,
		auction.StartDate,
		auction.EndDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Auction, error) {
	query := fmt.Sprintf(`SELECT %s FROM auctions WHERE id = $1`, auctionColumns)

	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auction: %w", err)
	}
	return auction, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.AuctionFilter) ([]*models.Auction, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where += " AND status = " + arg(filter.Status)
	}
	if filter.Category != "" {
		where += " AND category = " + arg(filter.Category)
	}
	if filter.Keyword != "" {
		where += " AND title ILIKE " + arg("%"+filter.Keyword+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM auctions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count auctions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM auctions`, auctionColumns) + where + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, total, rows.Err()
}

func (s *PostgresStore) ListBySeller(ctx context.Context, sellerID string) ([]*models.Auction, error) {
	query := fmt.Sprintf(`SELECT %s FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC`, auctionColumns)

	rows, err := s.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, auction *models.Auction) error {
	// The status predicate makes the edit atomic with the pending check: an
	// auction activated between the service's read and this write is left
	// untouched instead of having its current_price clobbered.
	query := `
		UPDATE auctions
		SET title = $1,
		    description = $2,
		    category = $3,
		    starting_price = $4,
		    current_price = $5,
		    start_date = $6,
		    end_date = $7,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $8 AND status = $9
	`

	result, err := s.db.ExecContext(ctx, query,
		auction.Title,
		auction.Description,
		auction.Category,
		auction.StartingPrice,
		auction.CurrentPrice,
		auction.StartDate,
		auction.EndDate,
		auction.ID,
		models.AuctionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	return s.checkPendingWrite(ctx, result, auction.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM auctions WHERE id = $1 AND status = $2`, id, models.AuctionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	return s.checkPendingWrite(ctx, result, id)
}

// checkPendingWrite maps a pending-only write that touched no rows to the
// error the caller expects: the auction is either gone or no longer pending.
func (s *PostgresStore) checkPendingWrite(ctx context.Context, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check auction: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrNotPending
}

func (s *PostgresStore) UpdateCurrentPrice(ctx context.Context, id string, from, to float64) error {
	query := `
		UPDATE auctions
		SET current_price = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND current_price = $3
	`

	result, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a lost race from a missing auction
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check auction: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Activate(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE auctions
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, models.AuctionStatusActive, id, models.AuctionStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to activate auction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) CloseAuction(ctx context.Context, id, winnerID string) (bool, error) {
	query := `
		UPDATE auctions
		SET status = $1,
		    winner_id = NULLIF($2, ''),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, models.AuctionStatusClosed, winnerID, id, models.AuctionStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to close auction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) DueForActivation(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	return s.dueAuctions(ctx, models.AuctionStatusPending, "start_date", now)
}

func (s *PostgresStore) DueForClosure(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	return s.dueAuctions(ctx, models.AuctionStatusActive, "end_date", now)
}

func (s *PostgresStore) dueAuctions(ctx context.Context, status, dateColumn string, now time.Time) ([]*models.Auction, error) {
	query := fmt.Sprintf(`SELECT %s FROM auctions WHERE status = $1 AND %s <= $2`, auctionColumns, dateColumn)

	rows, err := s.db.QueryContext(ctx, query, status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (s *PostgresStore) Insert(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.Status, bid.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.ErrDuplicateBid
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

const bidColumns = `id, auction_id, bidder_id, amount, status, created_at`

func scanBid(row interface{ Scan(...any) error }) (*models.Bid, error) {
	bid := &models.Bid{}
	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.Status, &bid.CreatedAt)
	return bid, err
}

func (s *PostgresStore) ListByAuction(ctx context.Context, auctionID string) ([]*models.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE auction_id = $1 ORDER BY amount DESC`, bidColumns)
	return s.queryBids(ctx, query, auctionID)
}

func (s *PostgresStore) ListByBidder(ctx context.Context, bidderID string) ([]*models.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE bidder_id = $1 ORDER BY created_at DESC`, bidColumns)
	return s.queryBids(ctx, query, bidderID)
}

func (s *PostgresStore) ListWinningByBidder(ctx context.Context, bidderID string) ([]*models.Bid, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM bids WHERE bidder_id = $1 AND status = $2 ORDER BY created_at DESC`, bidColumns)
	return s.queryBids(ctx, query, bidderID, models.BidStatusWinning)
}

func (s *PostgresStore) queryBids(ctx context.Context, query string, args ...any) ([]*models.Bid, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func (s *PostgresStore) HighestBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bids
		WHERE auction_id = $1 AND status <> 'rejected'
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`, bidColumns)

	bid, err := scanBid(s.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query highest bid: %w", err)
	}
	return bid, nil
}

func (s *PostgresStore) Exists(ctx context.Context, auctionID, bidderID string, amount float64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bids WHERE auction_id = $1 AND bidder_id = $2 AND amount = $3)`,
		auctionID, bidderID, amount).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bid: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, bidID, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE bids SET status = $1 WHERE id = $2`, status, bidID)
	if err != nil {
		return fmt.Errorf("failed to set bid status: %w", err)
	}
	return checkFound(result)
}

func (s *PostgresStore) MarkOutbid(ctx context.Context, auctionID, bidderID, exceptBidID string) error {
	query := `
		UPDATE bids
		SET status = $1
		WHERE auction_id = $2 AND bidder_id = $3 AND status = $4 AND id <> $5
	`

	_, err := s.db.ExecContext(ctx, query,
		models.BidStatusOutbid, auctionID, bidderID, models.BidStatusActive, exceptBidID)
	if err != nil {
		return fmt.Errorf("failed to mark bids outbid: %w", err)
	}
	return nil
}

func (s *PostgresStore) SettleClosure(ctx context.Context, auctionID, winningBidID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE bids SET status = $1 WHERE id = $2 AND auction_id = $3`,
		models.BidStatusWinning, winningBidID, auctionID); err != nil {
		return fmt.Errorf("failed to mark winning bid: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bids SET status = $1 WHERE auction_id = $2 AND id <> $3 AND status IN ($4, $5)`,
		models.BidStatusExpired, auctionID, winningBidID,
		models.BidStatusActive, models.BidStatusOutbid); err != nil {
		return fmt.Errorf("failed to expire bids: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}
	return nil
}

func checkFound(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
