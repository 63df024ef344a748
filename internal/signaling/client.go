package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/droprelay/internal/dns"
	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 * 1024

	outgoingBuffer = 64
)

// Client manages the websocket connection to the pub/sub service.
//
// Messages passed to Send before Start are queued and written once the write
// pump runs, so callers may publish while the handshake is still in flight.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	dialer    *websocket.Dialer
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	// readErr is why the read pump stopped. It is written before incoming
	// is closed.
	readErr error
}

// NewClient creates a client for serverURL. A nil dialer resolves hosts
// through the dns package before dialing.
func NewClient(serverURL string, dialer *websocket.Dialer) *Client {
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.NetDialContext = dns.DialContext
		dialer = &d
	}
	return &Client{
		serverURL: serverURL,
		dialer:    dialer,
		incoming:  make(chan *protocol.Message, 16),
		outgoing:  make(chan *protocol.Message, outgoingBuffer),
		done:      make(chan struct{}),
	}
}

// Connect dials the server. It does not start the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return nil
}

// Call writes req tagged with callback id and waits for the matching reply.
// It must only be used before Start, while nothing else reads the socket.
// Frames that are not the reply are discarded.
func (c *Client) Call(req *protocol.Message, id int) (*protocol.Message, error) {
	req.Callback = protocol.CallbackID(id)

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write %s: %w", req.Type, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var reply protocol.Message
		if err := c.conn.ReadJSON(&reply); err != nil {
			return nil, fmt.Errorf("read %s reply: %w", req.Type, err)
		}
		if reply.IsReply(id) {
			return &reply, nil
		}
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.readPump()
	go c.writePump()
}

// readPump reads frames from the connection until it fails, then closes
// the incoming channel.
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.recordReadError(err)
			return
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// recordReadError keeps err unless the connection was closed on purpose,
// by us or by the server.
func (c *Client) recordReadError(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	slog.Warn("pub/sub connection lost", "error", err)
	c.readErr = err
}

// writePump writes queued frames and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues msg for writing. It returns ErrClosed once the connection is
// gone.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of frames read from the server. It is closed
// when the connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Err returns why the connection ended unexpectedly, or nil. It is only
// meaningful once Incoming has been closed.
func (c *Client) Err() error {
	return c.readErr
}

// Done is closed once the client is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the client down. It is safe to call more than once and on a
// client that never connected.
func (c *Client) Close() {
	c.shutdown()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// abort tears down a connection whose pumps were never started.
func (c *Client) abort() {
	c.shutdown()
	if c.conn != nil {
		c.conn.Close()
	}
}
