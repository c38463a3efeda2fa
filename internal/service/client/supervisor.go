package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oshokin/doorbell/internal/logger"
)

// ErrGivenUp is returned when the retry policy is exhausted.
var ErrGivenUp = errors.New("gave up reconnecting")

// State is the connection state of a supervisor.
type State int32

// Supervisor states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateGivenUp
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "given-up"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connector performs one handshake with the server.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// SessionServer consumes one established session until it ends.
type SessionServer interface {
	Serve(ctx context.Context, session Session) error
}

// Supervisor keeps a session with the server open and reconnects with a
// bounded number of attempts.
type Supervisor struct {
	connector Connector
	server    SessionServer
	retry     *RetryState
	state     atomic.Int32
}

// NewSupervisor creates a supervisor handing every session to server.
func NewSupervisor(connector Connector, server SessionServer, policy RetryPolicy) *Supervisor {
	return &Supervisor{
		connector: connector,
		server:    server,
		retry:     NewRetryState(policy),
	}
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Run connects and reconnects until ctx is canceled, returning nil, or the
// retry policy is exhausted, returning an error wrapping ErrGivenUp. The
// attempt counter is reset by every successful handshake. Every attempt after
// a failed handshake or an ended session waits for the retry delay.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "supervisor")

	defer func() {
		if s.State() != StateGivenUp {
			s.setState(ctx, StateDisconnected)
		}
	}()

	for ctx.Err() == nil {
		s.setState(ctx, StateConnecting)

		session, err := s.connector.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			exhausted := s.retry.Fail()

			logger.WarnKV(ctx, "Handshake failed",
				"attempt", s.retry.Attempts(),
				"max_attempts", s.retry.policy.MaxAttempts,
				"error", err)

			if exhausted {
				s.setState(ctx, StateGivenUp)

				return fmt.Errorf("%w after %d attempts: %w", ErrGivenUp, s.retry.Attempts(), err)
			}

			s.setState(ctx, StateDisconnected)

			if !sleep(ctx, s.retry.Delay()) {
				return nil
			}

			continue
		}

		s.retry.Reset()
		s.setState(ctx, StateConnected)
		s.serve(ctx, session)
		s.setState(ctx, StateDisconnected)

		if !sleep(ctx, s.retry.Delay()) {
			return nil
		}
	}

	return nil
}

// serve runs one session and closes it afterwards.
func (s *Supervisor) serve(ctx context.Context, session Session) {
	// Canceling ctx unblocks a pending read.
	stop := context.AfterFunc(ctx, func() {
		_ = session.Close()
	})

	err := s.server.Serve(ctx, session)

	stop()

	if closeErr := session.Close(); closeErr != nil {
		logger.DebugKV(ctx, "Session close", "error", closeErr)
	}

	switch {
	case ctx.Err() != nil:
		logger.Info(ctx, "Session closed on shutdown")
	case err != nil:
		logger.WarnKV(ctx, "Session dropped", "error", err)
	default:
		logger.Info(ctx, "Session ended")
	}
}

func (s *Supervisor) setState(ctx context.Context, state State) {
	previous := State(s.state.Swap(int32(state)))
	if previous == state {
		return
	}

	logger.DebugKV(ctx, "Connection state changed", "from", previous.String(), "state", state.String())
}

// sleep waits for d and reports false if ctx is canceled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
