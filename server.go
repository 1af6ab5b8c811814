package pluginui

import (
	"context"
	"fmt"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/server"
)

// RequestHandler serves one request path. body is the decoded request
// payload, an empty object when the caller sent none. The returned value
// becomes the response data.
//
// Return a *RequestError to send a failure carrying a payload. Any other
// error sends its message only.
type RequestHandler = server.HandlerFunc

// ServerEnv is the host metadata exported to the plugin server.
type ServerEnv = server.Env

// Server is the plugin server side of the bridge.
//
// Lifecycle: register handlers, Start, then Ready once the server can take
// requests. Run blocks until the parent link is lost or ctx is done.
//
// Example usage:
//
//	s := pluginui.NewServer(pluginui.WithLogger(slog.Default()))
//	defer s.Close()
//
//	s.OnRequest("/hello", func(ctx context.Context, body any) (any, error) {
//	    return map[string]any{"hello": "world"}, nil
//	})
//
//	if err := s.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Ready(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Server interface {
	// OnRequest registers fn for path. A later registration for the same
	// path replaces the earlier one.
	OnRequest(path string, fn RequestHandler)

	// Start connects the transport and begins serving requests.
	Start(ctx context.Context) error

	// Ready announces that the server can take requests.
	Ready(ctx context.Context) error

	// PushEvent sends a fire-and-forget event to the UI peer.
	PushEvent(ctx context.Context, event string, data any) error

	// Env returns the host metadata from the HOMEBRIDGE_* variables.
	Env() ServerEnv

	// Run blocks until ctx is done or the parent link is lost. When the
	// link is lost the terminate action runs once.
	Run(ctx context.Context) error

	// Close stops serving and closes the transport. It never triggers the
	// terminate action. Safe to call multiple times.
	Close() error
}

// NewServer creates a plugin server.
func NewServer(opts ...Option) Server {
	return server.New(applyOptions(opts))
}

// Compile-time check that the internal server implements the Server interface.
var _ Server = (*server.Server)(nil)

// Handle registers a typed handler for path. The request body is decoded
// into Req; a body that does not fit Req is answered with a failure
// response without calling fn.
func Handle[Req, Resp any](s Server, path string, fn func(ctx context.Context, req Req) (Resp, error)) {
	s.OnRequest(path, func(ctx context.Context, body any) (any, error) {
		var req Req
		if err := message.Bind(body, &req); err != nil {
			return nil, NewRequestError("Invalid request body", err.Error())
		}

		return fn(ctx, req)
	})
}

// Serve runs a plugin server with automatic lifecycle management.
//
// It creates and starts the server, lets setup register handlers, announces
// ready, and blocks until ctx is done or the parent link is lost. If setup
// returns an error, ready is never sent and the error is returned.
//
// Example usage:
//
//	err := pluginui.Serve(ctx, func(s pluginui.Server) error {
//	    s.OnRequest("/ping", func(context.Context, any) (any, error) {
//	        return "pong", nil
//	    })
//	    return nil
//	})
func Serve(ctx context.Context, setup func(Server) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	s := server.New(options)

	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.Warn("failed to close server", "error", closeErr)
		}
	}()

	if err := setup(s); err != nil {
		return err
	}

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := s.Ready(ctx); err != nil {
		return fmt.Errorf("failed to announce ready: %w", err)
	}

	return s.Run(ctx)
}
