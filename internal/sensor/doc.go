// Package sensor samples the doorbell input and keeps the shared sensor state.
//
// Monitor polls a Pin acquired from a Driver at a fixed interval and stores
// the mapped state only when it differs from the stored one. The state is a
// single atomic flag written by the monitor and read by any number of
// notification sessions. When the pin cannot be acquired the monitor logs the
// failure and stops, leaving the state idle for the rest of the process.
package sensor
