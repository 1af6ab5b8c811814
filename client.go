package pluginui

import (
	"context"
	"fmt"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/bus"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/client"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/form"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
)

// Event is one delivery to a Listener.
type Event = bus.Event

// Listener receives events subscribed with On or Once.
type Listener = bus.Listener

// ListenerID identifies a subscription for Off.
type ListenerID = bus.ListenerID

// FormSession is an open form. Its callbacks receive the form's change,
// submit and cancel events.
type FormSession = form.Session

// FormOptions sets the labels of a form's buttons.
type FormOptions = form.Options

// ToastLevel selects the style of a toast notification.
type ToastLevel = message.ToastLevel

// Toast levels.
const (
	ToastSuccess = message.ToastSuccess
	ToastError   = message.ToastError
	ToastWarning = message.ToastWarning
	ToastInfo    = message.ToastInfo
)

// EventReady is emitted locally once the plugin server has announced ready.
const EventReady = client.EventReady

// Client is the UI peer side of the bridge.
//
// Lifecycle: Clients are single-use. After Close(), create a new client with
// NewClient(). Close fails every outstanding call with ErrBridgeClosed.
//
// Example usage:
//
//	client := pluginui.NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, pluginui.WithTransport(conn)); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.WaitReady(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	data, err := client.Request(ctx, "/hello", map[string]any{"name": "bob"})
type Client interface {
	// Start connects the transport and begins dispatching inbound messages.
	// Returns ConnectionError if the transport cannot be started.
	Start(ctx context.Context, opts ...Option) error

	// WaitReady blocks until the plugin server has announced ready.
	WaitReady(ctx context.Context) error

	// IsReady reports whether the plugin server has announced ready.
	IsReady() bool

	// Request calls path on the plugin server and waits for the answer.
	// A failure answer is returned as *ResponseError. There is no timeout;
	// cancel ctx to stop waiting.
	Request(ctx context.Context, path string, body any) (any, error)

	// GetPluginConfig returns the plugin's config blocks.
	GetPluginConfig(ctx context.Context) (any, error)

	// UpdatePluginConfig stages new config blocks on the host.
	UpdatePluginConfig(ctx context.Context, pluginConfig any) (any, error)

	// SavePluginConfig persists the staged config blocks.
	SavePluginConfig(ctx context.Context) (any, error)

	// GetPluginConfigSchema returns the plugin's config schema.
	GetPluginConfigSchema(ctx context.Context) (any, error)

	// I18nCurrentLang returns the host's language code.
	I18nCurrentLang(ctx context.Context) (string, error)

	// I18nGetTranslation returns the host's translation table.
	I18nGetTranslation(ctx context.Context) (any, error)

	// On subscribes fn to a push event.
	On(event string, fn Listener) ListenerID

	// Once subscribes fn to the next delivery of a push event.
	Once(event string, fn Listener) ListenerID

	// Off removes a subscription.
	Off(event string, id ListenerID) bool

	// CreateForm asks the host to render a form.
	CreateForm(ctx context.Context, schema any, data any, opts FormOptions) (*FormSession, error)

	// EndForm asks the host to tear down whichever form is displayed.
	EndForm(ctx context.Context) error

	// Toast shows a popup notification.
	Toast(ctx context.Context, level ToastLevel, msg string, title string) error

	// ShowSpinner and HideSpinner toggle the loading overlay.
	ShowSpinner(ctx context.Context) error
	HideSpinner(ctx context.Context) error

	// ShowSchemaForm and HideSchemaForm toggle the schema-generated form.
	ShowSchemaForm(ctx context.Context) error
	HideSchemaForm(ctx context.Context) error

	// CloseSettings asks the host to close the settings page.
	CloseSettings(ctx context.Context) error

	// FixScrollHeight reports the current content height to the host.
	FixScrollHeight(ctx context.Context) error

	// Done returns a channel closed when the connection ends.
	Done() <-chan struct{}

	// Close tears the client down. Safe to call multiple times.
	Close() error
}

// NewClient creates a new UI peer.
//
// Call Start() with options to connect:
//
//	client := NewClient()
//	err := client.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithTransport(conn),
//	)
func NewClient() Client {
	return newClientImpl()
}

// Call issues a request and decodes the response data into Resp.
func Call[Resp any](ctx context.Context, c Client, path string, body any) (Resp, error) {
	var resp Resp

	data, err := c.Request(ctx, path, body)
	if err != nil {
		return resp, err
	}

	if err := message.Bind(data, &resp); err != nil {
		return resp, fmt.Errorf("decode %s response: %w", path, err)
	}

	return resp, nil
}
