// Package ws is the websocket transport: it upgrades HTTP connections,
// pumps inbound binary frames into the hub's intake, and serializes writes
// from the hub goroutine.
package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"bomberhans/internal/server"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

// ErrConnClosed is returned by Send after the connection closed.
var ErrConnClosed = errors.New("ws: connection closed")

// Handler upgrades incoming HTTP requests and runs their read pumps.
type Handler struct {
	hub      *server.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs the websocket endpoint for the given hub.
func NewHandler(hub *server.Hub, logger *log.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and pumps frames until the peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	sock.SetReadLimit(maxFrameSize)

	conn := &Conn{sock: sock}
	h.logger.Debug("connection opened", "remote", r.RemoteAddr)

	for {
		kind, data, err := sock.ReadMessage()
		if err != nil {
			break
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		h.hub.Receive(conn, data)
	}
	h.logger.Debug("connection closed", "remote", r.RemoteAddr)
	conn.shutdown()
	h.hub.Disconnect(conn)
}

// Conn wraps one websocket connection behind the hub's Conn interface. The
// mutex serializes writes between the hub goroutine and the read pump's
// teardown.
type Conn struct {
	mu     sync.Mutex
	sock   *websocket.Conn
	closed bool
}

// Send writes one binary frame.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return c.sock.WriteMessage(websocket.BinaryMessage, data)
}

// Close sends a close frame with the reason and tears the socket down.
func (c *Conn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	c.sock.WriteMessage(websocket.CloseMessage, msg)
	c.sock.Close()
}

// shutdown marks the conn closed after the read pump ends without sending
// another close frame.
func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.sock.Close()
}
