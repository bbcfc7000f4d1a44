// Package transport defines the framed connection shared by the chat gateway
// and the matching service.
package transport

import "context"

// Conn carries whole encoded event frames between a client and the matching
// service. Implementations allow one concurrent reader alongside any number
// of writers.
type Conn interface {
	// Read blocks for the next event frame. Ping and close frames are handled
	// internally; a peer close surfaces as wsutil.ClosedError and a dropped
	// socket as io.EOF or a net error.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one event frame, bounded by the ctx deadline.
	Write(ctx context.Context, data []byte) error

	// Close sends a close frame and releases the socket. Repeated calls
	// return the first result.
	Close() error

	// RemoteAddr names the peer in log lines.
	RemoteAddr() string
}
