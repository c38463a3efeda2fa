package sensor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oshokin/doorbell/internal/domain/doorbell"
	"github.com/oshokin/doorbell/internal/logger"
)

// Observer receives sensor notifications from the monitor goroutine.
// Implementations must not block.
type Observer interface {
	// SensorAvailable reports whether the input pin could be acquired.
	SensorAvailable(ctx context.Context, available bool)
	// SensorChanged reports a stored state transition.
	SensorChanged(ctx context.Context, state doorbell.State)
}

// Options configures a Monitor.
type Options struct {
	// Pin is the line offset to acquire.
	Pin int
	// Polarity maps the input level to the sensor state.
	Polarity doorbell.Polarity
	// PollInterval is the sampling period.
	PollInterval time.Duration
	// Observers are notified about availability and transitions.
	Observers []Observer
}

// Monitor samples the input and owns the shared sensor state.
type Monitor struct {
	// driver acquires the input pin.
	driver Driver
	// opts holds the sampling configuration.
	opts Options
	// triggered is the shared state; the monitor is its only writer.
	triggered atomic.Bool
	// now returns the transition timestamp.
	now func() time.Time
}

// NewMonitor creates a monitor in the idle state.
func NewMonitor(driver Driver, opts Options) *Monitor {
	return &Monitor{
		driver: driver,
		opts:   opts,
		now:    time.Now,
	}
}

// Triggered reports the current shared state.
func (m *Monitor) Triggered() bool {
	return m.triggered.Load()
}

// Observe applies one sample. The state is stored and reported only when the
// mapped level differs from the stored state; it returns whether it changed.
func (m *Monitor) Observe(ctx context.Context, level doorbell.Level) bool {
	next := m.opts.Polarity.Triggered(level)
	if m.triggered.Load() == next {
		return false
	}

	m.triggered.Store(next)

	state := doorbell.State{
		Timestamp: m.now(),
		Triggered: next,
	}

	logger.InfoKV(ctx, "Sensor state changed",
		"from", doorbell.StateName(!next),
		"to", state.String(),
		"level", level.String())

	for _, o := range m.opts.Observers {
		o.SensorChanged(ctx, state)
	}

	return true
}

// Run acquires the pin and samples it until ctx is canceled. If the pin
// cannot be acquired the failure is logged, observers are told the sensor is
// unavailable and Run returns nil with the state left idle.
func (m *Monitor) Run(ctx context.Context) error {
	ctx = logger.WithFields(logger.WithName(ctx, "sensor"), "pin", m.opts.Pin, "polarity", m.opts.Polarity.String())

	pin, err := m.driver.Acquire(m.opts.Pin)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to acquire sensor pin, serving keepalives only", "error", err)
		m.notifyAvailable(ctx, false)

		return nil
	}

	defer func() {
		if closeErr := pin.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Unable to release sensor pin", "error", closeErr)
		}
	}()

	logger.InfoKV(ctx, "Sensor pin acquired", "poll_interval", m.opts.PollInterval.String())
	m.notifyAvailable(ctx, true)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		m.sample(ctx, pin)

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Sensor monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// sample reads the pin once; read failures skip the sample.
func (m *Monitor) sample(ctx context.Context, pin Pin) {
	level, err := pin.Read()
	if err != nil {
		logger.WarnKV(ctx, "Unable to read sensor pin", "error", err)
		return
	}

	m.Observe(ctx, level)
}

func (m *Monitor) notifyAvailable(ctx context.Context, available bool) {
	for _, o := range m.opts.Observers {
		o.SensorAvailable(ctx, available)
	}
}
