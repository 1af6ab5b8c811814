// Package client implements the UI peer of the bridge.
//
// The Client dispatches every inbound message by its action tag: responses go
// to the correlator, stream events and form events go to the event bus, and
// cosmetic actions go to the Layout collaborator. Outbound, it issues
// correlated requests to the plugin server and to the host, opens form
// sub-sessions, and sends the fire-and-forget helpers (toasts, spinner,
// schema form visibility, scroll height, close).
//
// The Client uses the protocol package for its read loop and owns the
// goroutines that track content height after the server announces ready.
package client
