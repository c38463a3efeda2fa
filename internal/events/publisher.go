package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oshokin/doorbell/internal/domain/doorbell"
	"github.com/oshokin/doorbell/internal/logger"
)

// Event types published on the subject.
const (
	TypeStateChanged = "state_changed"
	TypeAvailability = "availability"
)

// Event is the JSON document published for every sensor notification.
type Event struct {
	Type      string    `json:"type"`
	Host      string    `json:"host"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state,omitempty"`
	Available *bool     `json:"available,omitempty"`
}

// sink is the part of *nats.Conn the publisher uses.
type sink interface {
	Publish(subject string, data []byte) error
}

// Publisher turns sensor notifications into NATS messages.
type Publisher struct {
	// sink receives encoded events.
	sink sink
	// subject is where events are published.
	subject string
	// host identifies this server in events.
	host string
	// drain releases the connection on Close.
	drain func() error
	// now returns the availability event timestamp.
	now func() time.Time
}

// Connect dials the NATS server and returns a publisher for subject.
func Connect(ctx context.Context, url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("doorbell-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WarnKV(ctx, "NATS connection lost", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.InfoKV(ctx, "NATS connection restored", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := newPublisher(conn, subject)
	p.drain = conn.Drain

	return p, nil
}

func newPublisher(s sink, subject string) *Publisher {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return &Publisher{
		sink:    s,
		subject: subject,
		host:    host,
		now:     time.Now,
	}
}

// SensorAvailable publishes an availability event.
func (p *Publisher) SensorAvailable(ctx context.Context, available bool) {
	p.publish(ctx, Event{
		Type:      TypeAvailability,
		Host:      p.host,
		Timestamp: p.now(),
		Available: &available,
	})
}

// SensorChanged publishes a state change event.
func (p *Publisher) SensorChanged(ctx context.Context, state doorbell.State) {
	p.publish(ctx, Event{
		Type:      TypeStateChanged,
		Host:      p.host,
		Timestamp: state.Timestamp,
		State:     state.String(),
	})
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.drain == nil {
		return nil
	}

	return p.drain()
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to encode sensor event", "type", event.Type, "error", err)
		return
	}

	if err = p.sink.Publish(p.subject, data); err != nil {
		logger.WarnKV(ctx, "Unable to publish sensor event", "subject", p.subject, "type", event.Type, "error", err)
	}
}
