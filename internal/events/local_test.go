package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/aaronwang/auction-house/internal/events"
	"github.com/aaronwang/auction-house/internal/models"
)

type captureSink struct {
	auctionIDs []string
	payloads   [][]byte
}

func (s *captureSink) Publish(auctionID string, payload []byte) {
	s.auctionIDs = append(s.auctionIDs, auctionID)
	s.payloads = append(s.payloads, payload)
}

func TestLocalPublisher_BidAccepted(t *testing.T) {
	sink := &captureSink{}
	pub := events.NewLocalPublisher(sink)

	err := pub.PublishBidAccepted(context.Background(), &models.BidAcceptedEvent{
		EventID:       "e1",
		Type:          models.EventTypeBidAccepted,
		AuctionID:     "a1",
		BidID:         "b1",
		BidderID:      "alice",
		Amount:        25,
		PreviousPrice: 10,
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(sink.payloads))
	check.Equal(t, "a1", sink.auctionIDs[0])

	var decoded models.BidAcceptedEvent
	assert.NoError(t, json.Unmarshal(sink.payloads[0], &decoded))
	check.Equal(t, models.EventTypeBidAccepted, decoded.Type)
	check.Equal(t, 25.0, decoded.Amount)
	check.Equal(t, 10.0, decoded.PreviousPrice)
}

func TestLocalPublisher_AuctionClosed(t *testing.T) {
	sink := &captureSink{}
	pub := events.NewLocalPublisher(sink)

	err := pub.PublishAuctionClosed(context.Background(), &models.AuctionClosedEvent{
		EventID:    "e2",
		Type:       models.EventTypeAuctionClosed,
		AuctionID:  "a1",
		WinnerID:   "alice",
		FinalPrice: 25,
		Timestamp:  time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(sink.payloads))

	var decoded models.AuctionClosedEvent
	assert.NoError(t, json.Unmarshal(sink.payloads[0], &decoded))
	check.Equal(t, models.EventTypeAuctionClosed, decoded.Type)
	check.Equal(t, "alice", decoded.WinnerID)
	check.Equal(t, 25.0, decoded.FinalPrice)
}
