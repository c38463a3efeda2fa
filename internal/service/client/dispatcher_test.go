package client

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/doorbell/internal/protocol"
)

// TestDispatcher_PlaysUntilClose plays every ring and stops at Close.
func TestDispatcher_PlaysUntilClose(t *testing.T) {
	t.Parallel()

	p := &recordingPlayer{}
	session := newSession(false, msgs(
		protocol.Keepalive(),
		protocol.Triggered(),
		protocol.Keepalive(),
		protocol.Triggered(),
		protocol.Close(),
		protocol.Triggered(),
	)...)

	err := NewDispatcher(p, "doorbell").Serve(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, []string{"doorbell", "doorbell"}, p.played)
}

// TestDispatcher_EndOfStream returns nil when the stream just ends.
func TestDispatcher_EndOfStream(t *testing.T) {
	t.Parallel()

	p := &recordingPlayer{}

	err := NewDispatcher(p, "doorbell").Serve(context.Background(), newSession(false, msgs(protocol.Keepalive())...))
	require.NoError(t, err)
	require.Zero(t, p.calls())
}

// TestDispatcher_Violations never plays after an error message or bad frame.
func TestDispatcher_Violations(t *testing.T) {
	t.Parallel()

	_, decodeErr := protocol.Decode([]byte{0x7f})
	require.Error(t, decodeErr)

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name:  "error message",
			steps: msgs(protocol.Error(), protocol.Triggered()),
		},
		{
			name:  "unknown opcode",
			steps: []step{{err: decodeErr}, {msg: protocol.Triggered()}},
		},
		{
			name:  "unknown kind",
			steps: []step{{msg: protocol.Message{Kind: 42}}, {msg: protocol.Triggered()}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &recordingPlayer{}

			err := NewDispatcher(p, "doorbell").Serve(context.Background(), newSession(false, tt.steps...))
			require.ErrorIs(t, err, protocol.ErrProtocolViolation)
			require.Zero(t, p.calls())
		})
	}
}

// TestDispatcher_TransportError returns the read error.
func TestDispatcher_TransportError(t *testing.T) {
	t.Parallel()

	session := newSession(false, step{msg: protocol.Triggered()}, step{err: errReset})

	err := NewDispatcher(&recordingPlayer{}, "doorbell").Serve(context.Background(), session)
	require.ErrorIs(t, err, errReset)
}

// TestDispatcher_PlaybackErrorKeepsSession logs failed playback and keeps reading.
func TestDispatcher_PlaybackErrorKeepsSession(t *testing.T) {
	t.Parallel()

	p := &recordingPlayer{err: errNoSpeaker}
	session := newSession(false, msgs(protocol.Triggered(), protocol.Triggered(), protocol.Close())...)

	require.NoError(t, NewDispatcher(p, "doorbell").Serve(context.Background(), session))
	require.Equal(t, 2, p.calls())
}

// TestDispatcher_SerializesPlayback never overlaps two playbacks.
func TestDispatcher_SerializesPlayback(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := &recordingPlayer{duration: 3 * time.Second}
		session := newSession(false, msgs(
			protocol.Triggered(),
			protocol.Triggered(),
			protocol.Triggered(),
		)...)

		start := time.Now()

		require.NoError(t, NewDispatcher(p, "doorbell").Serve(t.Context(), session))
		require.Equal(t, 3, p.calls())
		require.EqualValues(t, 1, p.maxActive.Load())
		require.Equal(t, 9*time.Second, time.Since(start))
	})
}
