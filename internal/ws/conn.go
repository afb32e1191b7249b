package ws

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// Conn wraps one client websocket. The hub owns it for its lifetime;
// once closed it is removed from every room before the reference dies.
type Conn struct {
	ws     *websocket.Conn
	out    chan []byte
	userID string
	state  atomic.Int32
}

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a WS connection for the authenticated user
func NewConn(ws *websocket.Conn, userID string) *Conn {
	return &Conn{
		ws:     ws,
		userID: userID,
		out:    make(chan []byte, 64),
	}
}

// UserID returns the identity bound at connection time
func (c *Conn) UserID() string { return c.userID }

// Open reports whether the connection still accepts deliveries
func (c *Conn) Open() bool { return c.state.Load() == stateOpen }

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// TrySend queues a frame without blocking. A full buffer drops the
// frame for this recipient only and reports false.
func (c *Conn) TrySend(b []byte) bool {
	if !c.Open() {
		return false
	}
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// WriteLoop sends outbound messages + periodic pings
// Exits when ctx is cancelled or the connection closes
func (c *Conn) WriteLoop(ctx context.Context) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			if err := c.ws.Write(ctx, websocket.MessageText, b); err != nil {
				c.state.CompareAndSwap(stateOpen, stateClosing)
				return
			}
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the WS connection normally
func (c *Conn) Close() error {
	c.state.Store(stateClosed)
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}
