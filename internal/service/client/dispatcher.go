package client

import (
	"context"
	"fmt"
	"iter"

	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/protocol"
)

// Session is one established connection as seen by the client.
type Session interface {
	// Receive returns the inbound message sequence. It ends after the first error.
	Receive() iter.Seq2[protocol.Message, error]
	// Close releases the connection. It must be safe to call more than once.
	Close() error
}

// Player plays a loaded clip and blocks until it finishes.
type Player interface {
	Play(ctx context.Context, name string) error
}

// Dispatcher turns inbound messages into playback.
type Dispatcher struct {
	player Player
	clip   string
}

// NewDispatcher creates a dispatcher playing clip for every ring.
func NewDispatcher(player Player, clip string) *Dispatcher {
	return &Dispatcher{
		player: player,
		clip:   clip,
	}
}

// Serve consumes the session until it ends. Playback runs inline, so no
// message is read while a clip is playing. It returns nil when the server
// closes the session or the stream ends, and an error for protocol
// violations and transport failures.
func (d *Dispatcher) Serve(ctx context.Context, session Session) error {
	for msg, err := range session.Receive() {
		if err != nil {
			return err
		}

		switch msg.Kind {
		case protocol.KindTriggered:
			logger.Info(ctx, "Doorbell rang")

			if playErr := d.player.Play(ctx, d.clip); playErr != nil {
				logger.ErrorKV(ctx, "Playback failed", "clip", d.clip, "error", playErr)
			}
		case protocol.KindKeepalive:
		case protocol.KindClose:
			logger.Info(ctx, "Server closed the session")

			return nil
		case protocol.KindError:
			return protocol.Violationf("server signaled a protocol error")
		default:
			return fmt.Errorf("%w: unexpected message %s", protocol.ErrProtocolViolation, msg)
		}
	}

	return nil
}
