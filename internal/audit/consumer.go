package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwang/auction-house/internal/events"
)

// Consumer drains archived auction events from JetStream into the audit
// table. The write path never depends on this worker; it trails the live
// system and can be restarted freely.
type Consumer struct {
	conn  *nats.Conn
	store *Store
}

// NewConsumer creates a consumer over an established NATS connection.
func NewConsumer(conn *nats.Conn, store *Store) *Consumer {
	return &Consumer{conn: conn, store: store}
}

// Start consumes the stream until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	js, err := jetstream.New(c.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, events.StreamName, jetstream.ConsumerConfig{
		Durable:       "audit-worker",
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	log.Printf("[AUDIT] consuming stream %s", events.StreamName)
	<-ctx.Done()
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.store.Record(dbCtx, msg.Data()); err != nil {
		// Nak for redelivery; MaxDeliver caps the retries.
		log.Printf("[AUDIT] failed to record event: %v", err)
		msg.Nak()
		return
	}
	msg.Ack()
}
