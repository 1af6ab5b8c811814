package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
)

// Handler processes one inbound message. It runs on the read loop, so it
// must hand slow work to Controller.Go.
type Handler func(ctx context.Context, msg message.Message)

// Controller manages the inbound side of one transport.
//
// The Controller handles:
//   - Reading and parsing every inbound envelope
//   - Skipping protocol anomalies (unknown actions, malformed fields)
//   - Routing typed messages to the Handler in arrival order
//   - Encoding and sending outbound messages
//   - Tracking worker goroutines so Stop can cancel and wait for them
//
// The Controller must be started with Start() before messages are routed.
type Controller struct {
	log       *slog.Logger
	transport config.Transport
	handler   Handler

	started atomic.Bool
	cancel  context.CancelFunc

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewController creates a new protocol controller.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be started before calling Start().
func NewController(log *slog.Logger, transport config.Transport, handler Handler) *Controller {
	return &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		handler:   handler,
		done:      make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops, either
// because Stop was called or because the inbound stream ended.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins reading messages from the transport.
//
// The read loop and every goroutine started with Go run under a context
// derived from ctx that Stop cancels.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.ErrAlreadyStarted
	}

	c.log.Debug("Starting protocol controller")

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	messages, errs := c.transport.ReadMessages(loopCtx)

	c.wg.Go(func() { c.readLoop(loopCtx, messages, errs) })

	c.log.Info("Protocol controller started")

	return nil
}

// Stop gracefully shuts down the controller.
//
// This method signals the read loop to stop, cancels all worker goroutines,
// and waits for completion. It's safe to call Stop multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.closeDone()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()
	c.log.Info("Protocol controller stopped")
}

// Go runs fn on a tracked goroutine.
func (c *Controller) Go(fn func()) {
	c.wg.Go(fn)
}

// Send encodes msg and writes it to the transport.
func (c *Controller) Send(ctx context.Context, msg message.Message) error {
	if err := c.transport.SendMessage(ctx, message.Encode(msg)); err != nil {
		return fmt.Errorf("send %s: %w", msg.Action(), err)
	}

	return nil
}

// readLoop reads messages from the transport and routes them to the handler.
func (c *Controller) readLoop(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) {
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case raw, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")
				c.closeDone()

				return
			}

			c.route(ctx, raw)

		case err, ok := <-errs:
			if !ok {
				// Drain messages already decoded before the stream ended.
				errs = nil

				continue
			}

			if err != nil {
				c.log.Debug("Transport error in protocol", "error", err)
				c.SetFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// route parses one envelope and hands it to the handler.
func (c *Controller) route(ctx context.Context, raw map[string]any) {
	msg, err := message.Parse(c.log, raw)
	if err != nil {
		if stderrors.Is(err, errors.ErrUnknownAction) {
			c.log.Warn("Ignoring message with unknown action", "action", raw["action"])

			return
		}

		c.log.Warn("Ignoring malformed message", "error", err)

		return
	}

	c.handler(ctx, msg)
}
