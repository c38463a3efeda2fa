package client

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/doorbell/internal/protocol"
)

// newTestSupervisor wires a connector that reports the retry counter.
func newTestSupervisor(connector *scriptedConnector, p Player, policy RetryPolicy) *Supervisor {
	s := NewSupervisor(connector, NewDispatcher(p, "doorbell"), policy)
	connector.counter = s.retry.Attempts

	return s
}

// offsets returns attempt times relative to start.
func offsets(start time.Time, attempts []attempt) []time.Duration {
	result := make([]time.Duration, 0, len(attempts))
	for _, a := range attempts {
		result = append(result, a.at.Sub(start))
	}

	return result
}

// TestSupervisor_RecoversAfterFailures retries with the fixed delay and resets the counter.
func TestSupervisor_RecoversAfterFailures(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		session := newSession(true, msgs(protocol.Keepalive(), protocol.Triggered())...)
		connector := &scriptedConnector{outcomes: []any{errRefused, errRefused, session}}
		p := &recordingPlayer{}
		s := newTestSupervisor(connector, p, RetryPolicy{Delay: time.Second, MaxAttempts: 3})

		start := time.Now()
		result := make(chan error, 1)

		go func() { result <- s.Run(ctx) }()

		time.Sleep(5 * time.Second)
		synctest.Wait()

		attempts := connector.recorded()
		require.Len(t, attempts, 3)
		require.Equal(t, []time.Duration{0, time.Second, 2 * time.Second}, offsets(start, attempts))
		require.Equal(t, 2, attempts[2].failures)
		require.Equal(t, StateConnected, s.State())
		require.Equal(t, 1, p.calls())

		cancel()

		require.NoError(t, <-result)
		require.Equal(t, StateDisconnected, s.State())
		require.Positive(t, session.closes.Load())
	})
}

// TestSupervisor_GivesUp stops after the maximum number of failed handshakes.
func TestSupervisor_GivesUp(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		connector := &scriptedConnector{outcomes: []any{errRefused, errRefused, errRefused, errRefused}}
		s := newTestSupervisor(connector, &recordingPlayer{}, RetryPolicy{Delay: time.Second, MaxAttempts: 3})

		start := time.Now()
		err := s.Run(t.Context())

		require.ErrorIs(t, err, ErrGivenUp)
		require.ErrorIs(t, err, errRefused)
		require.Equal(t, StateGivenUp, s.State())
		require.Equal(t, 2*time.Second, time.Since(start))
		require.Len(t, connector.recorded(), 3)
	})
}

// TestSupervisor_HandshakeResetsCounter reconnects after a drop and keeps
// going because each handshake zeroed the counter.
func TestSupervisor_HandshakeResetsCounter(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		dropped := newSession(false, step{err: errReset})
		closed := newSession(false, msgs(protocol.Triggered(), protocol.Close())...)
		connector := &scriptedConnector{outcomes: []any{errRefused, dropped, errRefused, closed}}
		p := &recordingPlayer{}
		s := newTestSupervisor(connector, p, RetryPolicy{Delay: time.Second, MaxAttempts: 2})

		start := time.Now()
		result := make(chan error, 1)

		go func() { result <- s.Run(ctx) }()

		time.Sleep(10 * time.Second)
		synctest.Wait()

		attempts := connector.recorded()
		require.Equal(t,
			[]time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second},
			offsets(start, attempts))
		require.Equal(t, []int{0, 1, 0, 1, 0}, []int{
			attempts[0].failures,
			attempts[1].failures,
			attempts[2].failures,
			attempts[3].failures,
			attempts[4].failures,
		})
		require.Equal(t, 1, p.calls())
		require.Equal(t, StateConnecting, s.State())

		cancel()

		require.NoError(t, <-result)
		require.Positive(t, dropped.closes.Load())
		require.Positive(t, closed.closes.Load())
	})
}

// closingConnector hands out sessions the server closes right away.
type closingConnector struct {
	attempts []time.Time
}

// Connect records the attempt and returns a session yielding only Close.
func (c *closingConnector) Connect(context.Context) (Session, error) {
	c.attempts = append(c.attempts, time.Now())

	return newSession(false, msgs(protocol.Close())...), nil
}

// TestSupervisor_PacesReconnectsAfterEndedSessions waits the retry delay
// between sessions that end right after the handshake.
func TestSupervisor_PacesReconnectsAfterEndedSessions(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		connector := &closingConnector{}
		s := NewSupervisor(connector, NewDispatcher(&recordingPlayer{}, "doorbell"),
			RetryPolicy{Delay: time.Second, MaxAttempts: 3})

		start := time.Now()
		result := make(chan error, 1)

		go func() { result <- s.Run(ctx) }()

		time.Sleep(3500 * time.Millisecond)
		cancel()

		require.NoError(t, <-result)
		require.Equal(t, StateDisconnected, s.State())

		spacing := make([]time.Duration, 0, len(connector.attempts))
		for _, at := range connector.attempts {
			spacing = append(spacing, at.Sub(start))
		}

		require.Equal(t, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second}, spacing)
	})
}

// TestSupervisor_CancelDuringBackoff returns nil without further attempts.
func TestSupervisor_CancelDuringBackoff(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		connector := &scriptedConnector{outcomes: []any{errRefused, errRefused}}
		s := newTestSupervisor(connector, &recordingPlayer{}, RetryPolicy{Delay: time.Minute, MaxAttempts: 5})

		result := make(chan error, 1)

		go func() { result <- s.Run(ctx) }()

		time.Sleep(30 * time.Second)
		cancel()

		require.NoError(t, <-result)
		require.Len(t, connector.recorded(), 1)
		require.Equal(t, StateDisconnected, s.State())
	})
}

// TestState_String names every state.
func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "given-up", StateGivenUp.String())
	require.Equal(t, "state(9)", State(9).String())
}
