package broadcast

import (
	"context"
	"log"
)

// Hub maps auction ids to the set of websocket clients watching them and
// fans committed auction events out to those rooms. Delivery is at-most-once
// and best-effort: a disconnected subscriber misses events and reconciles by
// re-fetching auction state on reconnect.
//
// All room state is owned by the Run goroutine and mutated only through
// channels, never shared.
type Hub struct {
	subscribe   chan subscription
	unsubscribe chan subscription
	disconnect  chan *Client
	broadcast   chan roomMessage
	// done is closed when Run returns so late commands, like a readPump's
	// disconnect during shutdown, never block on a stopped hub.
	done chan struct{}
}

type subscription struct {
	auctionID string
	client    *Client
}

type roomMessage struct {
	auctionID string
	payload   []byte
}

// NewHub creates a hub. Call Run before use.
func NewHub() *Hub {
	return &Hub{
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		disconnect:  make(chan *Client),
		broadcast:   make(chan roomMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run owns the room state and processes hub commands until ctx is done.
// Run in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	// auctionID -> clients in that room
	rooms := make(map[string]map[*Client]bool)
	// client -> auctionIDs it joined, for cleanup on disconnect
	members := make(map[*Client]map[string]bool)

	join := func(sub subscription) {
		if rooms[sub.auctionID] == nil {
			rooms[sub.auctionID] = make(map[*Client]bool)
		}
		rooms[sub.auctionID][sub.client] = true
		if members[sub.client] == nil {
			members[sub.client] = make(map[string]bool)
		}
		members[sub.client][sub.auctionID] = true
	}

	leave := func(sub subscription) {
		if room := rooms[sub.auctionID]; room != nil {
			delete(room, sub.client)
			if len(room) == 0 {
				delete(rooms, sub.auctionID)
			}
		}
		if joined := members[sub.client]; joined != nil {
			delete(joined, sub.auctionID)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for client := range members {
				client.shutdown()
			}
			return

		case sub := <-h.subscribe:
			join(sub)
			log.Printf("[HUB] client %s joined auction %s", sub.client.ID, sub.auctionID)

		case sub := <-h.unsubscribe:
			leave(sub)
			log.Printf("[HUB] client %s left auction %s", sub.client.ID, sub.auctionID)

		case client := <-h.disconnect:
			for auctionID := range members[client] {
				leave(subscription{auctionID: auctionID, client: client})
			}
			delete(members, client)
			client.shutdown()
			log.Printf("[HUB] client %s disconnected", client.ID)

		case msg := <-h.broadcast:
			for client := range rooms[msg.auctionID] {
				select {
				case client.send <- msg.payload:
				default:
					// Send buffer full: drop the slow client rather than
					// letting it stall the room.
					go h.Disconnect(client)
				}
			}
		}
	}
}

// Subscribe adds the client to an auction's room.
func (h *Hub) Subscribe(auctionID string, client *Client) {
	select {
	case h.subscribe <- subscription{auctionID: auctionID, client: client}:
	case <-h.done:
	}
}

// Unsubscribe removes the client from an auction's room.
func (h *Hub) Unsubscribe(auctionID string, client *Client) {
	select {
	case h.unsubscribe <- subscription{auctionID: auctionID, client: client}:
	case <-h.done:
	}
}

// Disconnect removes the client from every room and closes it.
func (h *Hub) Disconnect(client *Client) {
	select {
	case h.disconnect <- client:
	case <-h.done:
	}
}

// Publish delivers an event payload to every client in the auction's room.
// Called only after the originating state mutation has committed.
func (h *Hub) Publish(auctionID string, payload []byte) {
	select {
	case h.broadcast <- roomMessage{auctionID: auctionID, payload: payload}:
	case <-h.done:
	}
}
