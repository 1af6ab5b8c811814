// Package pluginui provides a Go implementation of the Homebridge plugin
// custom UI bridge.
//
// A plugin with a custom settings page has two halves that never share
// memory: a sandboxed UI peer and a privileged plugin server spawned as a
// child of the host. This package implements both ends of the message
// channel between them: correlated request/response calls, fire-and-forget
// push events, form sub-sessions, and a liveness monitor that stops a plugin
// server whose parent has gone away.
//
// # Plugin Server
//
// The common case is a plugin server that registers request handlers and
// serves until its parent disconnects. Serve manages the whole lifecycle:
//
//	err := pluginui.Serve(ctx, func(s pluginui.Server) error {
//	    pluginui.Handle(s, "/token", func(ctx context.Context, req TokenRequest) (TokenResponse, error) {
//	        if req.Username == "" {
//	            return TokenResponse{}, pluginui.NewRequestError("Username required", nil)
//	        }
//	        return TokenResponse{Token: sign(req.Username)}, nil
//	    })
//	    return nil
//	},
//	    pluginui.WithLogger(slog.Default()),
//	)
//
// Handlers run concurrently, so a slow handler never delays the response to
// another request. A request for a path with no handler is answered with a
// {"message": "Not Found", "path": ...} failure.
//
// # UI Peer
//
// The UI side issues requests and listens for pushes:
//
//	err := pluginui.WithClient(ctx, func(c pluginui.Client) error {
//	    c.On("server-time-event", func(e pluginui.Event) {
//	        fmt.Println(e.Data)
//	    })
//	    token, err := pluginui.Call[TokenResponse](ctx, c, "/token", TokenRequest{Username: "bob"})
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(token.Token)
//	    return nil
//	},
//	    pluginui.WithTransport(conn),
//	)
//
// # Error Handling
//
// A request answered with success=false returns a *ResponseError carrying
// the failure payload:
//
//	_, err := c.Request(ctx, "/token", body)
//	if respErr, ok := errors.AsType[*pluginui.ResponseError](err); ok {
//	    log.Printf("server refused: %s (%v)", respErr.Message, respErr.Detail)
//	}
//
// Outstanding calls fail with ErrBridgeClosed when the bridge is closed.
// Calls have no timeout of their own; use context cancellation to stop
// waiting.
//
// # Transports
//
// The plugin server talks over its stdin and stdout by default. Any
// Transport can be injected with WithTransport; NewPipe returns an in-memory
// pair that is convenient for tests.
package pluginui
