// Package client implements doorbell-client: a supervisor that keeps a
// WebSocket session with doorbell-server open under a bounded retry policy,
// and a dispatcher that plays the doorbell clip for every ring, one at a time.
package client
