// Package message defines the closed set of bridge messages.
//
// Every transport delivery carries exactly one flat object tagged by its
// "action" field:
//
//	{"action": "request", "path": "/token", "body": {...}, "requestId": "01J..."}
//	{"action": "response", "requestId": "01J...", "success": true, "data": {...}}
//	{"action": "stream", "event": "server-time-event", "data": {...}}
//
// Parse converts a decoded object into one of the typed messages in this
// package and Encode converts it back. Payload fields (request bodies,
// response data, form schemas) are opaque values that the bridge carries
// without inspecting; Bind converts one into a typed Go value when the
// application wants to.
package message
