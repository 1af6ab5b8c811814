// Package transport provides message channels for the plugin UI bridge.
//
// Three implementations of config.Transport are provided:
//
//   - Stream frames envelopes over any reader/writer pair. NewStdio binds it
//     to the process's stdin and stdout, which is how a plugin server talks
//     to the host that spawned it; NewConn binds it to a network connection.
//   - Pipe is an in-memory connected pair. Every message is still encoded
//     and decoded through the codec, so the two ends never share memory.
//   - Dial and Listen open TCP connections wrapped in Stream.
//
// All of them report loss of the peer through Disconnected, which the
// liveness monitor watches.
package transport
