// Package protocol defines the doorbell wire messages.
//
// Data messages travel as binary frames holding a single opcode byte:
// 0x00 for a triggered doorbell and 0x01 for a protocol-level error.
// Keepalive and Close are transport control frames and carry no payload.
// Anything else received from the wire is a protocol violation.
package protocol
