package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one websocket subscriber. A client may watch several auctions at
// once; membership lives in the hub.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// clientCommand is what subscribers send upstream: room membership changes.
type clientCommand struct {
	Action    string `json:"action"` // "join" or "leave"
	AuctionID string `json:"auction_id"`
}

// NewClient wraps an upgraded websocket connection.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// shutdown closes the send channel and the connection. Safe to call more
// than once; the hub may drop a slow client that later disconnects itself.
func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// writePump pumps events from the send channel to the connection and keeps
// it alive with pings. One goroutine per client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes join/leave commands from the client until the connection
// drops, then detaches the client from the hub.
func (c *Client) readPump(hub *Hub) {
	defer hub.Disconnect(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[HUB] websocket error from client %s: %v", c.ID, err)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil || cmd.AuctionID == "" {
			continue
		}
		switch cmd.Action {
		case "join":
			hub.Subscribe(cmd.AuctionID, c)
		case "leave":
			hub.Unsubscribe(cmd.AuctionID, c)
		}
	}
}
