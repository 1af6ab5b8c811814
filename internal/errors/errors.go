package errors

import (
	"errors"
	"fmt"
)

// BridgeError is the base interface for all structured bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*ResponseError)(nil)
	_ BridgeError = (*RequestError)(nil)
	_ BridgeError = (*DecodeError)(nil)
	_ BridgeError = (*MessageParseError)(nil)
	_ BridgeError = (*ConnectionError)(nil)
	_ BridgeError = (*ProcessError)(nil)
	_ BridgeError = (*ServerNotFoundError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrBridgeClosed indicates the bridge was torn down while a call was outstanding.
	ErrBridgeClosed = errors.New("bridge closed")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted indicates an operation that needs a running read loop.
	ErrNotStarted = errors.New("not started")

	// ErrUnknownAction indicates the action tag is not part of the protocol.
	// Receivers log and skip these messages rather than treating them as fatal.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownForm indicates a form event for a form id that is not open.
	ErrUnknownForm = errors.New("unknown form")
)

// ResponseError is returned to a caller whose request was answered with
// success=false. Data holds the raw failure payload; Message, Path and Detail
// are lifted out of it when it has the {message, path?, error?} shape.
type ResponseError struct {
	Message string
	Path    string
	Detail  any
	Data    any
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return "request failed"
	}

	if e.Path != "" {
		return fmt.Sprintf("request failed: %s (%s)", e.Message, e.Path)
	}

	return "request failed: " + e.Message
}

// IsBridgeError implements BridgeError.
func (e *ResponseError) IsBridgeError() bool { return true }

// NewResponseError builds a ResponseError from a failure payload.
func NewResponseError(data any) *ResponseError {
	e := &ResponseError{Data: data}

	if m, ok := data.(map[string]any); ok {
		e.Message, _ = m["message"].(string)
		e.Path, _ = m["path"].(string)
		e.Detail = m["error"]
	}

	return e
}

// RequestError is a declared handler failure. Returning one from a request
// handler produces a failure response carrying both the message and the
// caller-defined Payload, where any other error carries the message only.
type RequestError struct {
	Message string
	Payload any
}

// NewRequestError creates a declared handler failure.
func NewRequestError(message string, payload any) *RequestError {
	return &RequestError{Message: message, Payload: payload}
}

func (e *RequestError) Error() string {
	return e.Message
}

// IsBridgeError implements BridgeError.
func (e *RequestError) IsBridgeError() bool { return true }

// DecodeError indicates one framed message could not be decoded.
// This error preserves the original raw data that failed to parse.
type DecodeError struct {
	RawData string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *DecodeError) IsBridgeError() bool { return true }

// MessageParseError indicates a decoded envelope did not match its action.
type MessageParseError struct {
	Message string
	Err     error
	Data    map[string]any
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *MessageParseError) IsBridgeError() bool { return true }

// ConnectionError indicates failure to establish the transport.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect transport: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ConnectionError) IsBridgeError() bool { return true }

// ProcessError indicates the plugin server child process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin server failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("plugin server failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProcessError) IsBridgeError() bool { return true }

// ServerNotFoundError indicates the plugin server entry point was not found.
type ServerNotFoundError struct {
	SearchedPaths []string
}

func (e *ServerNotFoundError) Error() string {
	if len(e.SearchedPaths) == 0 {
		return "plugin server not found"
	}

	return fmt.Sprintf("plugin server not found in: %v", e.SearchedPaths)
}

// IsBridgeError implements BridgeError.
func (e *ServerNotFoundError) IsBridgeError() bool { return true }
