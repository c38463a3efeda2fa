package server

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/protocol"
)

// Conn is the connection a Channel pushes messages to.
type Conn interface {
	// Send writes one message.
	Send(ctx context.Context, msg protocol.Message) error
	// Done is closed once the peer is gone.
	Done() <-chan struct{}
	// Err returns why the peer is gone; nil for a normal disconnect.
	Err() error
}

// StateReader exposes the shared sensor state.
type StateReader interface {
	Triggered() bool
}

// Recorder counts the outcome of every send.
type Recorder interface {
	MessageSent(kind string)
	SendFailed()
}

// ChannelOptions holds the push cadence.
type ChannelOptions struct {
	// SuppressInterval is the pause after each triggered push.
	SuppressInterval time.Duration
	// IdleInterval is the pause after each keepalive.
	IdleInterval time.Duration
}

// Channel pushes the sensor state to one connected client.
type Channel struct {
	state    StateReader
	conn     Conn
	opts     ChannelOptions
	recorder Recorder
}

// NewChannel creates a channel for one connection. A nil recorder is allowed.
func NewChannel(state StateReader, conn Conn, opts ChannelOptions, recorder Recorder) *Channel {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Channel{
		state:    state,
		conn:     conn,
		opts:     opts,
		recorder: recorder,
	}
}

// Run sends Triggered every suppress interval while the sensor is triggered
// and Keepalive every idle interval otherwise. It returns the error of the
// first failed send, the read-side error when the peer misbehaves, and nil
// when the peer disconnects or ctx is canceled; in the latter case a Close
// message is sent first.
func (c *Channel) Run(ctx context.Context) error {
	for {
		msg, pause := protocol.Keepalive(), c.opts.IdleInterval
		if c.state.Triggered() {
			msg, pause = protocol.Triggered(), c.opts.SuppressInterval
		}

		if err := c.conn.Send(ctx, msg); err != nil {
			c.recorder.SendFailed()
			return fmt.Errorf("send %s: %w", msg, err)
		}

		c.recorder.MessageSent(msg.Kind.String())

		if msg.Kind == protocol.KindTriggered {
			logger.Info(ctx, "Doorbell notification sent")
		}

		if stop, err := c.wait(ctx, pause); stop {
			return err
		}
	}
}

// wait pauses for d and reports whether the session must stop.
func (c *Channel) wait(ctx context.Context, d time.Duration) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false, nil
	case <-c.conn.Done():
		if err := c.conn.Err(); err != nil {
			return true, err
		}

		logger.Info(ctx, "Client disconnected")

		return true, nil
	case <-ctx.Done():
		c.sendClose(ctx)
		return true, nil
	}
}

// sendClose tells the client the server is going away.
func (c *Channel) sendClose(ctx context.Context) {
	msg := protocol.Close()

	if err := c.conn.Send(context.WithoutCancel(ctx), msg); err != nil {
		logger.DebugKV(ctx, "Unable to send close message", "error", err)
		return
	}

	c.recorder.MessageSent(msg.Kind.String())
}

// nopRecorder discards send outcomes.
type nopRecorder struct{}

func (nopRecorder) MessageSent(string) {}

func (nopRecorder) SendFailed() {}
