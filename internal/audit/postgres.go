package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Event is the envelope every archived auction event shares.
type Event struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	AuctionID string `json:"auction_id"`
}

// Store appends auction events to the audit table.
type Store struct {
	db *sql.DB
}

// NewStore opens and verifies a PostgreSQL connection for the audit worker.
func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Record appends one event. Replayed deliveries are absorbed by the
// event_id conflict clause, giving the worker at-least-once input with
// exactly-once rows.
func (s *Store) Record(ctx context.Context, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.EventID == "" {
		return fmt.Errorf("event without event_id")
	}

	query := `
		INSERT INTO auction_events (event_id, event_type, auction_id, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, event.EventID, event.Type, event.AuctionID, payload); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
