package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/bus"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/correlator"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/form"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/liveness"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/protocol"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

const (
	// defaultHeightPollInterval is the content height sampling period.
	defaultHeightPollInterval = 250 * time.Millisecond

	// EventReady is the local event emitted when the plugin server is ready.
	EventReady = "ready"
)

// Client implements the UI peer.
type Client struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	correlator *correlator.Correlator
	bus        bus.Bus
	layout     config.Layout
	monitor    *liveness.Monitor
	events     *eventQueue

	heightInterval time.Duration

	readyOnce sync.Once
	ready     chan struct{}

	heightMu   sync.Mutex
	lastHeight int

	// Lifecycle management
	mu        sync.Mutex
	connected bool
	closed    bool
	closeOnce sync.Once
}

// New creates a new UI peer.
//
// The client is not connected after creation. Call Start() with options to connect.
func New() *Client {
	return &Client{
		ready: make(chan struct{}),
	}
}

// Start connects the transport and begins dispatching inbound messages.
// When options.Transport is nil the client talks over os.Stdin and os.Stdout.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrBridgeClosed
	}

	if c.connected {
		return errors.ErrAlreadyStarted
	}

	// Default to empty options if nil
	if options == nil {
		options = &config.Options{}
	}

	// Extract logger from options, defaulting to a no-op logger
	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "client")

	c.transport = options.Transport
	if c.transport == nil {
		cdc := options.Codec
		if cdc == nil {
			cdc = codec.JSON()
		}

		c.transport = transport.NewStdio(log, cdc)
	}

	c.bus = bus.Select(options.EventBus)

	c.layout = options.Layout
	if c.layout == nil {
		c.layout = config.NopLayout{}
	}

	c.heightInterval = options.HeightPollInterval
	if c.heightInterval <= 0 {
		c.heightInterval = defaultHeightPollInterval
	}

	c.log.Debug("Starting client")

	if err := c.transport.Start(ctx); err != nil {
		return &errors.ConnectionError{Err: err}
	}

	c.events = newEventQueue()
	c.controller = protocol.NewController(log, c.transport, c.handleMessage)
	c.correlator = correlator.New(log, c.bus, c.controller.Send)

	if err := c.controller.Start(ctx); err != nil {
		_ = c.transport.Close()

		return fmt.Errorf("start protocol: %w", err)
	}

	c.controller.Go(func() { c.events.run(c.controller.Done()) })

	if options.ExitOnDisconnect {
		c.monitor = liveness.New(log, c.transport, liveness.Config{
			Interval:  options.LivenessInterval,
			Terminate: options.Terminate,
		})

		c.controller.Go(func() { c.monitor.Run(ctx) })
	}

	c.connected = true

	c.log.Info("Client started")

	return nil
}

func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrBridgeClosed
	}

	if !c.connected {
		return errors.ErrNotStarted
	}

	return nil
}

// Done returns a channel closed when the read loop stops.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.controller == nil {
		return nil
	}

	return c.controller.Done()
}

// Bus returns the client's event bus.
func (c *Client) Bus() bus.Bus {
	return c.bus
}

// Monitor returns the liveness monitor, or nil when ExitOnDisconnect is off.
func (c *Client) Monitor() *liveness.Monitor {
	return c.monitor
}

// Close tears the client down: it stops the read loop, fails every
// outstanding request with errors.ErrBridgeClosed, and closes the transport.
// It's safe to call Close multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		started := c.connected
		c.mu.Unlock()

		if !started {
			return
		}

		c.log.Debug("Closing client")

		if c.monitor != nil {
			c.monitor.Disarm()
		}

		c.correlator.Close()
		c.controller.Stop()

		closeErr = c.transport.Close()

		c.log.Info("Client closed")
	})

	return closeErr
}

// send is the outbound path for fire-and-forget messages.
func (c *Client) send(ctx context.Context, msg message.Message) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	return c.controller.Send(ctx, msg)
}

// handleMessage dispatches one inbound message by its action. Responses are
// delivered here; stream, form and ready listeners run on the event queue.
func (c *Client) handleMessage(_ context.Context, msg message.Message) {
	switch m := msg.(type) {
	case *message.Ready:
		c.handleReady()

	case *message.Response:
		c.correlator.Deliver(m)

	case *message.Stream:
		c.log.Debug("Received stream event", "event", m.Event)
		c.events.push(func() { c.bus.Emit(m.Event, m.Data) })

	case *message.FormEvent:
		c.events.push(func() {
			if c.bus.Emit(m.FormID, m) == 0 {
				c.log.Warn("Form event for a form that is not open", "form_id", m.FormID, "form_event", m.Kind)
			}
		})

	case *message.BodyClass:
		c.layout.AddBodyClass(m.Class)

	case *message.InlineStyle:
		c.layout.InjectStyle(m.Style)

	case *message.LinkElement:
		c.layout.InjectLink(m.Href, m.Rel)

	default:
		c.log.Warn("Ignoring message not addressed to the UI", "action", msg.Action())
	}
}

// handleReady runs once, for the first ready announcement.
func (c *Client) handleReady() {
	first := false

	c.readyOnce.Do(func() {
		first = true

		c.log.Info("Plugin server ready")

		c.layout.Reveal()
		close(c.ready)
		c.events.push(func() { c.bus.Emit(EventReady, nil) })

		c.controller.Go(c.monitorHeight)
	})

	if !first {
		c.log.Debug("Ignoring repeated ready announcement")
	}
}

// WaitReady blocks until the plugin server has announced ready.
func (c *Client) WaitReady(ctx context.Context) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	select {
	case <-c.ready:
		return nil
	case <-c.controller.Done():
		if err := c.controller.FatalError(); err != nil {
			return fmt.Errorf("transport error: %w", err)
		}

		return errors.ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsReady reports whether the plugin server has announced ready.
func (c *Client) IsReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// monitorHeight reports the content height once, then again whenever it
// changes, until the client stops.
func (c *Client) monitorHeight() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-c.controller.Done()
		cancel()
	}()

	if err := c.FixScrollHeight(ctx); err != nil {
		c.log.Debug("Failed to report scroll height", "error", err)
	}

	ticker := time.NewTicker(c.heightInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			height := c.layout.ContentHeight()

			c.heightMu.Lock()
			changed := height != c.lastHeight
			c.heightMu.Unlock()

			if !changed {
				continue
			}

			if err := c.FixScrollHeight(ctx); err != nil {
				c.log.Debug("Failed to report scroll height", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// ===== Correlated calls =====

// Request calls path on the plugin server and waits for its response.
// A failure response is returned as *errors.ResponseError.
func (c *Client) Request(ctx context.Context, path string, body any) (any, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	return c.correlator.Issue(ctx, func(requestID string) message.Message {
		return &message.Request{Path: path, Body: body, RequestID: requestID}
	})
}

// hostCall issues a correlated call answered by the host.
func (c *Client) hostCall(ctx context.Context, op message.Action, pluginConfig any) (any, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	return c.correlator.Issue(ctx, func(requestID string) message.Message {
		return &message.HostCall{Op: op, RequestID: requestID, PluginConfig: pluginConfig}
	})
}

// GetPluginConfig returns the plugin's current config blocks.
func (c *Client) GetPluginConfig(ctx context.Context) (any, error) {
	return c.hostCall(ctx, message.ActionConfigGet, nil)
}

// UpdatePluginConfig replaces the plugin's config blocks in the host's
// working copy. Nothing is persisted until SavePluginConfig.
func (c *Client) UpdatePluginConfig(ctx context.Context, pluginConfig any) (any, error) {
	return c.hostCall(ctx, message.ActionConfigUpdate, pluginConfig)
}

// SavePluginConfig persists the working copy.
func (c *Client) SavePluginConfig(ctx context.Context) (any, error) {
	return c.hostCall(ctx, message.ActionConfigSave, nil)
}

// GetPluginConfigSchema returns the plugin's config schema.
func (c *Client) GetPluginConfigSchema(ctx context.Context) (any, error) {
	return c.hostCall(ctx, message.ActionConfigSchema, nil)
}

// I18nCurrentLang returns the host's current language code.
func (c *Client) I18nCurrentLang(ctx context.Context) (string, error) {
	data, err := c.hostCall(ctx, message.ActionI18nLang, nil)
	if err != nil {
		return "", err
	}

	var lang string
	if err := message.Bind(data, &lang); err != nil {
		return "", fmt.Errorf("decode language: %w", err)
	}

	return lang, nil
}

// I18nGetTranslation returns the host's translation table for the current
// language.
func (c *Client) I18nGetTranslation(ctx context.Context) (any, error) {
	return c.hostCall(ctx, message.ActionI18nTranslations, nil)
}

// ===== Events =====

// On subscribes fn to the named event.
func (c *Client) On(event string, fn bus.Listener) bus.ListenerID {
	return c.bus.On(event, fn)
}

// Once subscribes fn to the next occurrence of the named event.
func (c *Client) Once(event string, fn bus.Listener) bus.ListenerID {
	return c.bus.Once(event, fn)
}

// Off removes a subscription.
func (c *Client) Off(event string, id bus.ListenerID) bool {
	return c.bus.Off(event, id)
}

// ===== Forms =====

// CreateForm asks the host to render a form and returns its sub-session.
func (c *Client) CreateForm(ctx context.Context, schema any, data any, opts form.Options) (*form.Session, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	return form.Open(ctx, c.log, c.bus, c.controller.Send, schema, data, opts)
}

// EndForm asks the host to tear down whichever form is displayed.
func (c *Client) EndForm(ctx context.Context) error {
	return c.send(ctx, &message.FormEnd{})
}

// ===== Fire-and-forget helpers =====

// Toast shows a popup notification.
func (c *Client) Toast(ctx context.Context, level message.ToastLevel, msg string, title string) error {
	return c.send(ctx, &message.Toast{Level: level, Message: msg, Title: title})
}

// ShowSpinner shows the loading overlay.
func (c *Client) ShowSpinner(ctx context.Context) error {
	return c.send(ctx, &message.Spinner{Visible: true})
}

// HideSpinner hides the loading overlay.
func (c *Client) HideSpinner(ctx context.Context) error {
	return c.send(ctx, &message.Spinner{Visible: false})
}

// ShowSchemaForm shows the schema-generated config form.
func (c *Client) ShowSchemaForm(ctx context.Context) error {
	return c.send(ctx, &message.SchemaForm{Visible: true})
}

// HideSchemaForm hides the schema-generated config form.
func (c *Client) HideSchemaForm(ctx context.Context) error {
	return c.send(ctx, &message.SchemaForm{Visible: false})
}

// CloseSettings asks the host to close the settings surface.
func (c *Client) CloseSettings(ctx context.Context) error {
	return c.send(ctx, &message.CloseSettings{})
}

// FixScrollHeight reports the current content height to the host.
func (c *Client) FixScrollHeight(ctx context.Context) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	height := c.layout.ContentHeight()

	c.heightMu.Lock()
	c.lastHeight = height
	c.heightMu.Unlock()

	return c.send(ctx, &message.ScrollHeight{Height: height})
}
