package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/lumenhub-core/internal/infrastructure/config"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumenhub-core/internal/protocol"
)

// defaultSendBuffer is the per-connection outbound frame buffer when the
// configured size is not positive.
const defaultSendBuffer = 32

var (
	// ErrConnClosed is returned by Send after the connection has closed.
	ErrConnClosed = errors.New("api: connection closed")

	// ErrSendBufferFull is returned by Send when the device is not reading
	// fast enough. The frame is dropped.
	ErrSendBufferFull = errors.New("api: send buffer full")
)

// Hub tracks open device connections so they can be closed on shutdown.
type Hub struct {
	logger *logging.Logger
	conns  map[*deviceConn]struct{}
	mu     sync.RWMutex
}

// deviceConn is one device WebSocket. It implements session.Conn.
type deviceConn struct {
	id     string
	origin string
	ws     *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// NewHub creates a new connection hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[*deviceConn]struct{}),
	}
}

// Run blocks until the context is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *deviceConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("device socket connected", "connection_id", c.id, "connections", h.ConnCount())
}

// Unregister removes a connection and stops its write pump.
func (h *Hub) Unregister(c *deviceConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	c.closeSend()
	h.logger.Debug("device socket disconnected", "connection_id", c.id, "connections", h.ConnCount())
}

// ConnCount returns the number of open device connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// closeAll closes every socket. Each read pump then sees the error and
// unregisters its connection.
func (h *Hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		if c.ws != nil {
			c.ws.Close()
		}
	}
}

func (c *deviceConn) ID() string           { return c.id }
func (c *deviceConn) RemoteOrigin() string { return c.origin }

// Send queues a frame for the write pump without blocking.
func (c *deviceConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// closeSend closes the send channel once.
func (c *deviceConn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// handleDeviceSocket upgrades a device's HTTP request to the frame
// protocol. Devices do not authenticate.
func (s *Server) handleDeviceSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	bufSize := s.wsCfg.SendBuffer
	if bufSize <= 0 {
		bufSize = defaultSendBuffer
	}
	conn := &deviceConn{
		id:     uuid.NewString(),
		origin: remoteHost(r),
		ws:     ws,
		send:   make(chan []byte, bufSize),
	}

	handler := protocol.NewHandler(conn, protocol.Deps{
		Runtime:   s.runtime,
		Directory: s.registry,
		Validator: s.validator,
		Observer:  s.observer,
		Logger:    s.logger.Component("protocol"),
	})

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.hub.Register(conn)

	go conn.writePump(s.wsCfg)
	go s.readPump(ctx, conn, handler)
}

// readPump feeds inbound frames to the protocol handler until the socket
// fails or closes, then ends the session.
func (s *Server) readPump(ctx context.Context, c *deviceConn, handler *protocol.Handler) {
	defer func() {
		handler.Close()
		s.hub.Unregister(c)
		c.ws.Close()
	}()

	if s.wsCfg.MaxMessageSize > 0 {
		c.ws.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}
	deadline := readDeadline(s.wsCfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("device socket read error", "connection_id", c.id, "error", err)
			} else {
				s.logger.Debug("device socket closed", "connection_id", c.id, "error", err)
			}
			return
		}
		// Any frame counts as activity, not only pongs.
		//nolint:errcheck // Best-effort deadline reset
		c.ws.SetReadDeadline(time.Now().Add(deadline))

		//nolint:errcheck // Rejected frames are answered on the socket
		handler.HandleFrame(ctx, message)
	}
}

// writePump writes queued frames and keepalive pings.
func (c *deviceConn) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readDeadline is how long a socket may stay silent.
func readDeadline(cfg config.WebSocketConfig) time.Duration {
	d := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	if d <= 0 {
		return 40 * time.Second
	}
	return d
}

// remoteHost returns the peer's host from r.RemoteAddr, bracketed when it
// is an IPv6 literal so it can be used in a URL.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return ""
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
