// Package config provides configuration types for the plugin UI bridge.
package config

import "context"

// Transport defines the interface for the message channel between two sides
// of the bridge. Implement this to provide custom transports for testing,
// mocking, or alternative channels (e.g., a window-messaging shim).
//
// The default implementations live in internal/transport (stdio, TCP and
// in-memory pipes) and internal/subprocess (a spawned plugin server).
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields one decoded envelope per delivery.
	// The error channel yields fatal read errors only; malformed single
	// messages are logged and skipped by the transport.
	// Both channels are closed when reading completes. It must be called once.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage sends one envelope as one delivery.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, msg map[string]any) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsConnected reports whether the other side is still reachable.
	IsConnected() bool

	// Disconnected returns a channel that is closed exactly once when the
	// transport loses its peer, whether by EOF, write failure or Close.
	Disconnected() <-chan struct{}
}
