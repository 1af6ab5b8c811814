package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
)

// HandlerFunc serves one request path. body is the opaque request payload,
// never nil. The returned value becomes the response data.
//
// Return an *errors.RequestError to send a declared failure carrying a
// payload. Any other error sends its message only and is logged.
type HandlerFunc func(ctx context.Context, body any) (any, error)

// Registry maps request paths to handlers.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log.With("component", "registry"),
		handlers: make(map[string]HandlerFunc, 10),
	}
}

// Register binds fn to path. Registering the same path again replaces the
// previous handler.
func (r *Registry) Register(path string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[path]; exists {
		r.log.Debug("Replacing request handler", "path", path)
	} else {
		r.log.Debug("Registering request handler", "path", path)
	}

	r.handlers[path] = fn
}

// Lookup returns the handler registered for path.
func (r *Registry) Lookup(path string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.handlers[path]

	return fn, ok
}

// Paths returns the registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		paths = append(paths, p)
	}

	slices.Sort(paths)

	return paths
}

// Dispatch runs the handler for req and builds the response. It always
// returns a response carrying req.RequestID, even when no handler exists or
// the handler panics.
func (r *Registry) Dispatch(ctx context.Context, req *message.Request) (resp *message.Response) {
	fn, ok := r.Lookup(req.Path)
	if !ok {
		r.log.Warn("No handler registered for path", "path", req.Path, "request_id", req.RequestID)

		return failure(req.RequestID, map[string]any{"message": "Not Found", "path": req.Path})
	}

	body := req.Body
	if body == nil {
		body = map[string]any{}
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Request handler panicked", "path", req.Path, "request_id", req.RequestID, "panic", p)

			resp = failure(req.RequestID, map[string]any{"message": fmt.Sprint(p)})
		}
	}()

	data, err := fn(ctx, body)
	if err != nil {
		if reqErr, ok := stderrors.AsType[*errors.RequestError](err); ok {
			r.log.Debug("Request handler declared failure", "path", req.Path, "request_id", req.RequestID,
				"error", reqErr.Message)

			return failure(req.RequestID, map[string]any{"message": reqErr.Message, "error": reqErr.Payload})
		}

		r.log.Error("Request handler failed", "path", req.Path, "request_id", req.RequestID, "error", err)

		return failure(req.RequestID, map[string]any{"message": err.Error()})
	}

	return &message.Response{RequestID: req.RequestID, Success: true, Data: data}
}

func failure(requestID string, data map[string]any) *message.Response {
	return &message.Response{RequestID: requestID, Success: false, Data: data}
}
