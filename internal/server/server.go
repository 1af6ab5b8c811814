// Package server implements the plugin server side of the bridge.
//
// The Server runs as a child of the host, usually over its own stdin and
// stdout. It answers correlated requests from its Registry, each on its own
// goroutine, pushes stream events, and watches its parent link with a
// liveness monitor so it never outlives the host.
package server

import (
	"context"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/liveness"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/protocol"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

// Env is the host metadata exported to the plugin server.
type Env struct {
	StoragePath string
	ConfigPath  string
	UIVersion   string
}

// EnvFromOS reads Env from the process environment.
func EnvFromOS() Env {
	return Env{
		StoragePath: os.Getenv(config.EnvStoragePath),
		ConfigPath:  os.Getenv(config.EnvConfigPath),
		UIVersion:   os.Getenv(config.EnvUIVersion),
	}
}

// Server serves plugin requests over one transport.
type Server struct {
	log        *slog.Logger
	transport  config.Transport
	registry   *Registry
	controller *protocol.Controller
	monitor    *liveness.Monitor
	env        Env
}

// New creates a Server. When opts.Transport is nil the server talks over
// os.Stdin and os.Stdout.
func New(opts *config.Options) *Server {
	// Default to empty options if nil
	if opts == nil {
		opts = &config.Options{}
	}

	base := opts.Logger
	if base == nil {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	log := base.With("component", "server")

	t := opts.Transport
	if t == nil {
		c := opts.Codec
		if c == nil {
			c = codec.JSON()
		}

		t = transport.NewStdio(base, c)
	}

	s := &Server{
		log:       log,
		transport: t,
		registry:  NewRegistry(base),
		env:       EnvFromOS(),
	}

	s.controller = protocol.NewController(base, t, s.handleMessage)

	if !opts.DisableLiveness {
		s.monitor = liveness.New(base, t, liveness.Config{
			Interval:  opts.LivenessInterval,
			Terminate: opts.Terminate,
		})
	}

	return s
}

// OnRequest registers fn for path. A later registration for the same path
// replaces the earlier one.
func (s *Server) OnRequest(path string, fn HandlerFunc) {
	s.registry.Register(path, fn)
}

// Registry returns the server's handler registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Env returns the host metadata read at construction.
func (s *Server) Env() Env {
	return s.env
}

// Start connects the transport and begins serving requests.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Start(ctx); err != nil {
		return err
	}

	return s.controller.Start(ctx)
}

// Ready announces that the server can take requests.
func (s *Server) Ready(ctx context.Context) error {
	s.log.Debug("Announcing ready")

	return s.controller.Send(ctx, &message.Ready{Server: true})
}

// PushEvent sends a fire-and-forget stream event.
func (s *Server) PushEvent(ctx context.Context, event string, data any) error {
	return s.controller.Send(ctx, &message.Stream{Event: event, Data: data})
}

// Run blocks until ctx is done, the parent link is lost, or the transport
// fails. It returns the fatal transport error, if any.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.monitor != nil {
		g.Go(func() error {
			s.monitor.Run(gctx)

			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.controller.Done():
			// The inbound stream ended, so the parent link is gone.
			if s.monitor != nil {
				s.monitor.Notify()
			}
		case <-s.terminated():
		}

		return s.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return s.controller.FatalError()
}

// Monitor returns the liveness monitor, or nil when disabled.
func (s *Server) Monitor() *liveness.Monitor {
	return s.monitor
}

// Close stops serving and closes the transport. A local Close never trips the
// liveness monitor.
func (s *Server) Close() error {
	if s.monitor != nil {
		s.monitor.Disarm()
	}

	s.controller.Stop()

	return s.transport.Close()
}

func (s *Server) terminated() <-chan struct{} {
	if s.monitor == nil {
		return nil
	}

	return s.monitor.Terminated()
}

// handleMessage routes inbound traffic. Only requests are meaningful here.
func (s *Server) handleMessage(ctx context.Context, msg message.Message) {
	switch m := msg.(type) {
	case *message.Request:
		s.log.Debug("Received request", "request_id", m.RequestID, "path", m.Path)

		// Handle on a worker so slow handlers never block other traffic.
		s.controller.Go(func() {
			resp := s.registry.Dispatch(ctx, m)

			if err := s.controller.Send(ctx, resp); err != nil {
				if ctx.Err() != nil {
					s.log.Debug("Could not send response during shutdown", "request_id", m.RequestID, "error", err)

					return
				}

				s.log.Error("Failed to send response", "request_id", m.RequestID, "error", err)
			}
		})

	default:
		s.log.Warn("Ignoring message not addressed to the plugin server", "action", msg.Action())
	}
}
