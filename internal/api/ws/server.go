package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/protocol"
)

// HeaderClient carries the client identity (username@hostname) in the handshake.
const HeaderClient = "X-Doorbell-Client"

// closeReason is sent with the close frame on server shutdown.
const closeReason = "server shutting down"

// Service runs one notification session over an accepted connection.
type Service interface {
	Serve(ctx context.Context, conn *ServerConn) error
}

// Handler upgrades requests to WebSocket connections and runs a session for each.
type Handler struct {
	// service runs the session of every accepted connection.
	service Service
	// upgrader performs the WebSocket handshake.
	upgrader websocket.Upgrader
	// writeTimeout bounds every send.
	writeTimeout time.Duration
	// sessions tracks running sessions for Wait.
	sessions sync.WaitGroup
}

// NewHandler wires the service into an HTTP handler.
func NewHandler(service Service, writeTimeout time.Duration) *Handler {
	return &Handler{
		service:      service,
		writeTimeout: writeTimeout,
	}
}

// ServeHTTP upgrades the request and blocks until the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Counted before Upgrade: Shutdown stops tracking hijacked connections.
	h.sessions.Add(1)
	defer h.sessions.Done()

	ctx := logger.WithFields(r.Context(),
		"remote_addr", r.RemoteAddr,
		"client", r.Header.Get(HeaderClient),
		"user_agent", r.UserAgent())

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.WarnKV(ctx, "WebSocket upgrade failed", "error", err)
		return
	}

	ctx = logger.WithKV(ctx, "session_id", uuid.NewString())
	conn := NewServerConn(socket, h.writeTimeout)

	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.DebugKV(ctx, "Close connection", "error", closeErr)
		}
	}()

	logger.Info(ctx, "Client connected")

	if err = h.service.Serve(ctx, conn); err != nil {
		logger.WarnKV(ctx, "Session ended with error", "error", err)
	}

	logger.Info(ctx, "Closing connection")
}

// Wait blocks until every running session has ended.
func (h *Handler) Wait() {
	h.sessions.Wait()
}

// ServerConn is an accepted doorbell connection.
type ServerConn struct {
	// socket is the upgraded connection.
	socket *websocket.Conn
	// writeTimeout bounds every send.
	writeTimeout time.Duration
	// done is closed when the peer is gone.
	done chan struct{}
	// err is the reason the read side stopped, nil for a normal disconnect.
	err error
	// closeOnce guards socket.Close.
	closeOnce sync.Once
	// closeErr is the result of the single Close call.
	closeErr error
}

// NewServerConn wraps an upgraded socket and starts reading control frames from it.
func NewServerConn(socket *websocket.Conn, writeTimeout time.Duration) *ServerConn {
	c := &ServerConn{
		socket:       socket,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}

	go c.readPump()

	return c
}

// Send writes one message. Keepalive and Close go out as control frames.
func (c *ServerConn) Send(_ context.Context, msg protocol.Message) error {
	deadline := time.Now().Add(c.writeTimeout)

	switch msg.Kind {
	case protocol.KindKeepalive:
		return c.socket.WriteControl(websocket.PingMessage, nil, deadline)
	case protocol.KindClose:
		payload := websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReason)
		return c.socket.WriteControl(websocket.CloseMessage, payload, deadline)
	}

	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	if err = c.socket.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	return c.socket.WriteMessage(websocket.BinaryMessage, payload)
}

// Done is closed once the peer has disconnected or violated the protocol.
func (c *ServerConn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended; nil means the peer disconnected.
// It is only meaningful after Done is closed.
func (c *ServerConn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close releases the socket. It is safe to call more than once.
func (c *ServerConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.socket.Close()
	})

	return c.closeErr
}

// readPump processes incoming control frames. Clients never send data
// frames, so any data frame ends the connection as a protocol violation.
func (c *ServerConn) readPump() {
	defer close(c.done)

	messageType, _, err := c.socket.NextReader()
	if err != nil {
		return
	}

	c.err = protocol.Violationf("unexpected %s frame from client", frameName(messageType))
	_ = c.Close()
}

// frameName names a WebSocket data frame type.
func frameName(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("type %d", messageType)
	}
}
