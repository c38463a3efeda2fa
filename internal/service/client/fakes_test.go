package client

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/doorbell/internal/protocol"
)

var (
	errRefused   = errors.New("connection refused")
	errReset     = errors.New("connection reset by peer")
	errNoSpeaker = errors.New("no audio device")
)

// step is one item yielded by scriptedSession.
type step struct {
	msg protocol.Message
	err error
}

// scriptedSession yields a fixed script, then optionally blocks until closed.
type scriptedSession struct {
	steps []step
	// hold keeps the stream open after the script until Close is called.
	hold   bool
	closed chan struct{}
	once   sync.Once
	closes atomic.Int32
}

func newSession(hold bool, steps ...step) *scriptedSession {
	return &scriptedSession{
		steps:  steps,
		hold:   hold,
		closed: make(chan struct{}),
	}
}

// Receive yields the script.
func (s *scriptedSession) Receive() iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		for _, st := range s.steps {
			if !yield(st.msg, st.err) {
				return
			}
		}

		if s.hold {
			<-s.closed
			yield(protocol.Message{}, errReset)
		}
	}
}

// Close unblocks a held stream.
func (s *scriptedSession) Close() error {
	s.closes.Add(1)
	s.once.Do(func() { close(s.closed) })

	return nil
}

// msgs wraps messages into script steps.
func msgs(messages ...protocol.Message) []step {
	steps := make([]step, 0, len(messages))
	for _, m := range messages {
		steps = append(steps, step{msg: m})
	}

	return steps
}

// recordingPlayer records playback calls and their overlap.
type recordingPlayer struct {
	mu sync.Mutex
	// played holds the clip names in call order.
	played []string
	// duration is how long a playback takes.
	duration time.Duration
	// err is returned by every playback.
	err error
	// active counts playbacks in flight.
	active atomic.Int32
	// maxActive is the highest observed overlap.
	maxActive atomic.Int32
}

// Play records the call and blocks for the configured duration.
func (p *recordingPlayer) Play(ctx context.Context, name string) error {
	current := p.active.Add(1)
	defer p.active.Add(-1)

	for {
		seen := p.maxActive.Load()
		if current <= seen || p.maxActive.CompareAndSwap(seen, current) {
			break
		}
	}

	p.mu.Lock()
	p.played = append(p.played, name)
	p.mu.Unlock()

	if p.duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(p.duration):
		}
	}

	return p.err
}

// calls returns the number of playbacks so far.
func (p *recordingPlayer) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.played)
}

// attempt is one recorded handshake.
type attempt struct {
	at time.Time
	// failures is the retry counter seen when the attempt started.
	failures int
}

// scriptedConnector replays handshake outcomes, then blocks until ctx is done.
type scriptedConnector struct {
	mu sync.Mutex
	// outcomes holds one entry per attempt: a session or an error.
	outcomes []any
	attempts []attempt
	// counter reports the supervisor retry counter.
	counter func() int
}

// Connect returns the next scripted outcome.
func (c *scriptedConnector) Connect(ctx context.Context) (Session, error) {
	c.mu.Lock()

	failures := 0
	if c.counter != nil {
		failures = c.counter()
	}

	c.attempts = append(c.attempts, attempt{at: time.Now(), failures: failures})

	if len(c.outcomes) == 0 {
		c.mu.Unlock()
		<-ctx.Done()

		return nil, ctx.Err()
	}

	outcome := c.outcomes[0]
	c.outcomes = c.outcomes[1:]
	c.mu.Unlock()

	switch v := outcome.(type) {
	case Session:
		return v, nil
	case error:
		return nil, v
	default:
		panic("unexpected outcome")
	}
}

// recorded returns a snapshot of the attempts.
func (c *scriptedConnector) recorded() []attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]attempt(nil), c.attempts...)
}
