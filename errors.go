package pluginui

import "github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"

// Re-export error types from internal package

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// ResponseError is returned when a request is answered with success=false.
type ResponseError = errors.ResponseError

// RequestError is a declared handler failure carrying a payload.
type RequestError = errors.RequestError

// ConnectionError indicates the transport could not be established.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the plugin server process failed.
type ProcessError = errors.ProcessError

// ServerNotFoundError indicates no plugin server entry point was found.
type ServerNotFoundError = errors.ServerNotFoundError

// MessageParseError indicates an envelope did not match its action.
type MessageParseError = errors.MessageParseError

// DecodeError indicates a framed message could not be decoded.
type DecodeError = errors.DecodeError

// NewRequestError creates a declared handler failure. The failure response
// carries both message and payload.
func NewRequestError(message string, payload any) *RequestError {
	return errors.NewRequestError(message, payload)
}

// Re-export sentinel errors from internal package.
var (
	// ErrBridgeClosed indicates the bridge was closed while a call was outstanding.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrNotStarted indicates the client has not been started.
	ErrNotStarted = errors.ErrNotStarted

	// ErrUnknownAction indicates a message action outside the protocol.
	ErrUnknownAction = errors.ErrUnknownAction

	// ErrUnknownForm indicates a form event for a form that is not open.
	ErrUnknownForm = errors.ErrUnknownForm
)
