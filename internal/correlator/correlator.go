// Package correlator pairs outstanding requests with their responses.
//
// Each issued call gets a fresh identifier and a listener on the
// event bus keyed by that identifier. The dispatcher emits every inbound
// response on the bus under its requestId, so any number of correlators can
// share one bus without knowing about each other.
//
// No timeout is imposed. A caller that stops waiting (context cancelled)
// gets ctx.Err(), but the pending entry stays registered until the response
// arrives and is consumed, or until Close.
package correlator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/bus"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
)

// Sender delivers an outbound message to the transport.
type Sender func(ctx context.Context, msg message.Message) error

// Correlator tracks one pending waiter per outstanding request id.
type Correlator struct {
	log  *slog.Logger
	bus  bus.Bus
	send Sender

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[string]bus.ListenerID
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a Correlator that listens on b and sends through send.
func New(log *slog.Logger, b bus.Bus, send Sender) *Correlator {
	return &Correlator{
		log:     log.With("component", "correlator"),
		bus:     b,
		send:    send,
		pending: make(map[string]bus.ListenerID, 10),
		done:    make(chan struct{}),
	}
}

// Issue sends the message built for a fresh request id and waits for the
// matching response.
//
// On success=true the response data is returned. On success=false the
// returned error is a *errors.ResponseError wrapping the data.
func (c *Correlator) Issue(ctx context.Context, build func(requestID string) message.Message) (any, error) {
	responses := make(chan *message.Response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil, errors.ErrBridgeClosed
	}

	requestID := c.nextIDLocked()

	// Register before sending so a response delivered immediately is not missed.
	// The listener stays attached until a response arrives: other events can
	// share the name on the bus.
	listenerID := c.bus.On(requestID, func(e bus.Event) {
		resp, ok := e.Data.(*message.Response)
		if !ok {
			c.log.Warn("Ignoring non-response event on request id", "request_id", requestID)

			return
		}

		if !c.release(requestID) {
			return
		}

		responses <- resp
	})
	c.pending[requestID] = listenerID
	c.mu.Unlock()

	msg := build(requestID)

	c.log.Debug("Sending correlated request", "request_id", requestID, "action", msg.Action())

	if err := c.send(ctx, msg); err != nil {
		c.release(requestID)

		return nil, fmt.Errorf("send %s: %w", msg.Action(), err)
	}

	select {
	case resp := <-responses:
		if !resp.Success {
			c.log.Debug("Request rejected", "request_id", requestID)

			return nil, errors.NewResponseError(resp.Data)
		}

		c.log.Debug("Request resolved", "request_id", requestID)

		return resp.Data, nil

	case <-c.done:
		return nil, errors.ErrBridgeClosed

	case <-ctx.Done():
		// The entry stays pending; a late response is still consumed.
		c.log.Debug("Caller stopped waiting", "request_id", requestID, "error", ctx.Err())

		return nil, ctx.Err()
	}
}

// Deliver routes a response to its waiter. It reports whether a waiter was
// registered; unmatched responses are dropped.
func (c *Correlator) Deliver(resp *message.Response) bool {
	if c.bus.Emit(resp.RequestID, resp) == 0 {
		c.log.Debug("Dropping unmatched response", "request_id", resp.RequestID)

		return false
	}

	return true
}

// Pending returns the number of requests awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Close detaches every pending listener and fails their waiters with
// errors.ErrBridgeClosed. It's safe to call Close multiple times.
func (c *Correlator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true

		for requestID, listenerID := range c.pending {
			c.bus.Off(requestID, listenerID)
			delete(c.pending, requestID)
		}
		c.mu.Unlock()

		close(c.done)
	})
}

// release detaches the listener for requestID. It reports whether the
// entry was still pending.
func (c *Correlator) release(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	listenerID, ok := c.pending[requestID]
	if !ok {
		return false
	}

	c.bus.Off(requestID, listenerID)
	delete(c.pending, requestID)

	return true
}

// nextIDLocked returns an id that is not currently outstanding: a ULID with
// a process-local sequence suffix. Caller must hold c.mu.
func (c *Correlator) nextIDLocked() string {
	for {
		id := strings.ToLower(ulid.Make().String()) + "-" + strconv.FormatUint(c.seq.Add(1), 36)
		if _, taken := c.pending[id]; !taken {
			return id
		}
	}
}
