package doorbell

import (
	"fmt"
	"time"
)

// Level is a raw digital input level.
type Level uint8

const (
	// Low is the logic-low input level.
	Low Level = iota
	// High is the logic-high input level.
	High
)

// String returns the level name.
func (l Level) String() string {
	if l == High {
		return "high"
	}

	return "low"
}

// Polarity decides which input level means the sensor is triggered.
type Polarity uint8

const (
	// ActiveLow treats a low level as triggered (pull-up input wired to ground).
	ActiveLow Polarity = iota
	// ActiveHigh treats a high level as triggered.
	ActiveHigh
)

// Triggered reports whether the level means the sensor is active.
func (p Polarity) Triggered(level Level) bool {
	if p == ActiveHigh {
		return level == High
	}

	return level == Low
}

// String returns the polarity name.
func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}

	return "active-low"
}

// State is the sensor state at a specific point in time.
type State struct {
	// Timestamp is when the state was observed.
	Timestamp time.Time
	// Triggered indicates whether the sensor is currently active.
	Triggered bool
}

// String returns "triggered" or "idle".
func (s State) String() string {
	return StateName(s.Triggered)
}

// StateName returns the human-readable name of a sensor state flag.
func StateName(triggered bool) string {
	if triggered {
		return "triggered"
	}

	return "idle"
}

// Actor identifies the host a client runs on.
type Actor struct {
	// Hostname is the machine name of the client.
	Hostname string
	// Username is the system user running the client.
	Username string
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}
