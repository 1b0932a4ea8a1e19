package broadcast

import (
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy belongs to the edge proxy in front of this service.
		return true
	},
}

// Handler upgrades HTTP connections into hub subscribers.
type Handler struct {
	hub *Hub
}

// NewHandler creates a websocket handler bound to the hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWS handles GET /ws/auctions/{id}: the connection joins the auction's
// room immediately and may join or leave further rooms with
// {"action":"join"|"leave","auction_id":...} messages.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]
	if auctionID == "" {
		http.Error(w, "auction id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] failed to upgrade connection: %v", err)
		return
	}

	client := NewClient(uuid.New().String(), conn)

	// Queue the welcome before the client is known to the hub: once the pumps
	// run, the send channel may be closed by a disconnect at any moment.
	welcome := fmt.Sprintf(`{"type":"connected","auction_id":%q,"client_id":%q}`, auctionID, client.ID)
	client.send <- []byte(welcome)

	h.hub.Subscribe(auctionID, client)
	go client.writePump()
	go client.readPump(h.hub)
}
