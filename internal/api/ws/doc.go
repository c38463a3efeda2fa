// Package ws implements the WebSocket transport of the doorbell protocol.
//
// On the server side Handler upgrades HTTP requests and passes each
// connection, wrapped in ServerConn, to a Service. On the client side Dialer
// opens ClientConn connections whose Receive method yields decoded protocol
// messages. Keepalives travel as ping frames and graceful shutdown as close
// frames; data messages are single-byte binary frames.
package ws
