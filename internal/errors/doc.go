// Package errors defines error types for the plugin UI bridge.
//
// This package provides sentinel errors for lifecycle conditions and
// structured error types for protocol, transport and handler failures. All
// structured types implement BridgeError and support unwrapping, so they can
// be checked with errors.Is, errors.As and errors.AsType.
package errors
