package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwang/auction-house/internal/models"
)

const (
	// liveSubjectPrefix carries events for realtime fan-out to websocket rooms.
	liveSubjectPrefix = "auction.live."
	// archiveSubjectPrefix carries the same events into JetStream for the
	// audit worker.
	archiveSubjectPrefix = "auction.archive."

	// StreamName is the JetStream stream holding archived auction events.
	StreamName = "AUCTION_EVENTS"
)

// NATSPublisher publishes events to core NATS for realtime delivery and
// mirrors them into a JetStream stream for archival.
type NATSPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewNATSPublisher connects the publisher and ensures the archival stream
// exists.
func NewNATSPublisher(conn *nats.Conn) (*NATSPublisher, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Stream for auction event archival",
		Subjects:    []string{archiveSubjectPrefix + "*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &NATSPublisher{conn: conn, js: js}, nil
}

func (p *NATSPublisher) PublishBidAccepted(ctx context.Context, event *models.BidAcceptedEvent) error {
	return p.publish(ctx, event.AuctionID, event)
}

func (p *NATSPublisher) PublishAuctionClosed(ctx context.Context, event *models.AuctionClosedEvent) error {
	return p.publish(ctx, event.AuctionID, event)
}

func (p *NATSPublisher) publish(ctx context.Context, auctionID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(liveSubjectPrefix+auctionID, data); err != nil {
		return fmt.Errorf("failed to publish live event: %w", err)
	}

	// Archival is mirrored asynchronously so the live path never waits on a
	// JetStream ack.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := p.js.Publish(ctx, archiveSubjectPrefix+auctionID, data); err != nil {
			log.Printf("[NATS] failed to publish archive event for auction %s: %v", auctionID, err)
		}
	}()

	return nil
}

// Bridge subscribes to live auction events and forwards them to a Sink,
// typically the websocket hub. It makes the broadcaster agnostic to whether
// events originate in this process or another.
type Bridge struct {
	conn *nats.Conn
	sub  *nats.Subscription
	sink Sink
}

// NewBridge creates an unstarted bridge.
func NewBridge(conn *nats.Conn, sink Sink) *Bridge {
	return &Bridge{conn: conn, sink: sink}
}

// Start subscribes to all live auction events and blocks until ctx is
// cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	sub, err := b.conn.Subscribe(liveSubjectPrefix+"*", func(msg *nats.Msg) {
		auctionID := strings.TrimPrefix(msg.Subject, liveSubjectPrefix)
		if auctionID == "" || auctionID == msg.Subject {
			return
		}
		b.sink.Publish(auctionID, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	b.sub = sub
	log.Printf("[BRIDGE] subscribed to %s*", liveSubjectPrefix)

	<-ctx.Done()
	return nil
}

// Close unsubscribes the bridge.
func (b *Bridge) Close() error {
	if b.sub != nil {
		return b.sub.Unsubscribe()
	}
	return nil
}
