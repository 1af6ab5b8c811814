// Package subprocess provides the host's transport to a plugin server.
//
// This package implements the Transport interface by spawning the plugin
// server as a child process and communicating via its stdin/stdout. It handles
// entry point discovery, environment metadata, stderr streaming, and reports
// abnormal exits as ProcessError.
package subprocess
