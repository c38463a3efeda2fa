// Package doorbell contains the core domain types of the doorbell notifier.
//
// It defines the raw input Level, the Polarity that maps a level to the
// logical sensor state, the State observed at a point in time and the Actor
// that identifies a connected client host.
package doorbell
