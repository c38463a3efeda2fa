package ws

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/doorbell/internal/domain/doorbell"
	"github.com/oshokin/doorbell/internal/protocol"
	"github.com/oshokin/doorbell/internal/version"
)

// controlWriteTimeout bounds pong and close frames written by the client.
const controlWriteTimeout = time.Second

// errReceiveStopped aborts the read loop when the consumer stops iterating
// from inside the ping handler.
var errReceiveStopped = errors.New("receive stopped")

// Dialer opens client connections to the doorbell endpoint.
type Dialer struct {
	// url is the WebSocket URL of the endpoint.
	url string
	// header is sent with every handshake.
	header http.Header
	// dialer performs the handshake.
	dialer *websocket.Dialer
	// readTimeout drops connections that stay silent for longer; <= 0 disables it.
	readTimeout time.Duration
}

// NewDialer creates a dialer that identifies itself as actor.
func NewDialer(serverURL string, actor *doorbell.Actor, handshakeTimeout, readTimeout time.Duration) *Dialer {
	header := make(http.Header)
	header.Set("User-Agent", version.UserAgent("doorbell-client"))

	if actor != nil {
		header.Set(HeaderClient, actor.String())
	}

	return &Dialer{
		url:    serverURL,
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		readTimeout: readTimeout,
	}
}

// Dial performs the handshake.
func (d *Dialer) Dial(ctx context.Context) (*ClientConn, error) {
	socket, resp, err := d.dialer.DialContext(ctx, d.url, d.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake with %s: %w (status %s)", d.url, err, resp.Status)
		}

		return nil, fmt.Errorf("handshake with %s: %w", d.url, err)
	}

	return &ClientConn{
		socket:      socket,
		readTimeout: d.readTimeout,
	}, nil
}

// ClientConn is an established client connection.
type ClientConn struct {
	// socket is the connected WebSocket.
	socket *websocket.Conn
	// readTimeout is the tolerated silence; <= 0 disables it.
	readTimeout time.Duration
	// closeOnce guards Close.
	closeOnce sync.Once
	// closeErr is the result of the single Close call.
	closeErr error
}

// Receive returns the inbound message sequence of this connection. Pings
// yield Keepalive, a normal close yields Close, and the sequence ends after
// the first error. The sequence is single-use.
func (c *ClientConn) Receive() iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		stopped := false

		c.socket.SetPingHandler(func(appData string) error {
			c.extendDeadline()

			err := c.socket.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return fmt.Errorf("write pong: %w", err)
			}

			if !yield(protocol.Keepalive(), nil) {
				stopped = true
				return errReceiveStopped
			}

			return nil
		})

		c.extendDeadline()

		for {
			messageType, payload, err := c.socket.ReadMessage()
			if stopped {
				return
			}

			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					yield(protocol.Close(), nil)
					return
				}

				yield(protocol.Message{}, fmt.Errorf("read message: %w", err))

				return
			}

			c.extendDeadline()

			var msg protocol.Message
			if messageType == websocket.BinaryMessage {
				msg, err = protocol.Decode(payload)
			} else {
				err = protocol.Violationf("unexpected %s frame from server", frameName(messageType))
			}

			if !yield(msg, err) {
				return
			}
		}
	}
}

// Close sends a best-effort close frame and releases the socket. It is safe
// to call concurrently with Receive and more than once.
func (c *ClientConn) Close() error {
	c.closeOnce.Do(func() {
		payload := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.socket.WriteControl(websocket.CloseMessage, payload, time.Now().Add(controlWriteTimeout))

		c.closeErr = c.socket.Close()
	})

	return c.closeErr
}

func (c *ClientConn) extendDeadline() {
	if c.readTimeout <= 0 {
		return
	}

	_ = c.socket.SetReadDeadline(time.Now().Add(c.readTimeout))
}
