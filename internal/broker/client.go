package broker

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024

	sendBuffer = 256
)

// Client is one websocket connection to the broker.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// send is drained by WritePump. Only the hub closes it.
	send chan *protocol.Message

	// The fields below are owned by the hub goroutine.

	// member is zero until the handshake succeeds.
	member protocol.Member

	// rooms is the set of room names the client is subscribed to.
	rooms map[string]bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan *protocol.Message, sendBuffer),
		rooms: make(map[string]bool),
	}
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The broker runs ReadPump in a per-connection goroutine, so there is at
// most one reader on a connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("broker read failed", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}

		if !c.hub.submit(&inbound{client: c, msg: &msg}) {
			return
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection and
// keeps it alive with pings.
//
// There is at most one writer to a connection: all writes happen here.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("broker write failed", "remote", c.conn.RemoteAddr(), "error", err)
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
