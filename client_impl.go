package pluginui

import (
	"context"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start connects the transport and begins dispatching inbound messages.
func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

func (c *clientWrapper) WaitReady(ctx context.Context) error {
	return c.impl.WaitReady(ctx)
}

func (c *clientWrapper) IsReady() bool {
	return c.impl.IsReady()
}

func (c *clientWrapper) Request(ctx context.Context, path string, body any) (any, error) {
	return c.impl.Request(ctx, path, body)
}

func (c *clientWrapper) GetPluginConfig(ctx context.Context) (any, error) {
	return c.impl.GetPluginConfig(ctx)
}

func (c *clientWrapper) UpdatePluginConfig(ctx context.Context, pluginConfig any) (any, error) {
	return c.impl.UpdatePluginConfig(ctx, pluginConfig)
}

func (c *clientWrapper) SavePluginConfig(ctx context.Context) (any, error) {
	return c.impl.SavePluginConfig(ctx)
}

func (c *clientWrapper) GetPluginConfigSchema(ctx context.Context) (any, error) {
	return c.impl.GetPluginConfigSchema(ctx)
}

func (c *clientWrapper) I18nCurrentLang(ctx context.Context) (string, error) {
	return c.impl.I18nCurrentLang(ctx)
}

func (c *clientWrapper) I18nGetTranslation(ctx context.Context) (any, error) {
	return c.impl.I18nGetTranslation(ctx)
}

func (c *clientWrapper) On(event string, fn Listener) ListenerID {
	return c.impl.On(event, fn)
}

func (c *clientWrapper) Once(event string, fn Listener) ListenerID {
	return c.impl.Once(event, fn)
}

func (c *clientWrapper) Off(event string, id ListenerID) bool {
	return c.impl.Off(event, id)
}

func (c *clientWrapper) CreateForm(ctx context.Context, schema any, data any, opts FormOptions) (*FormSession, error) {
	return c.impl.CreateForm(ctx, schema, data, opts)
}

func (c *clientWrapper) EndForm(ctx context.Context) error {
	return c.impl.EndForm(ctx)
}

func (c *clientWrapper) Toast(ctx context.Context, level ToastLevel, msg string, title string) error {
	return c.impl.Toast(ctx, level, msg, title)
}

func (c *clientWrapper) ShowSpinner(ctx context.Context) error {
	return c.impl.ShowSpinner(ctx)
}

func (c *clientWrapper) HideSpinner(ctx context.Context) error {
	return c.impl.HideSpinner(ctx)
}

func (c *clientWrapper) ShowSchemaForm(ctx context.Context) error {
	return c.impl.ShowSchemaForm(ctx)
}

func (c *clientWrapper) HideSchemaForm(ctx context.Context) error {
	return c.impl.HideSchemaForm(ctx)
}

func (c *clientWrapper) CloseSettings(ctx context.Context) error {
	return c.impl.CloseSettings(ctx)
}

func (c *clientWrapper) FixScrollHeight(ctx context.Context) error {
	return c.impl.FixScrollHeight(ctx)
}

func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Close tears the client down and fails outstanding calls.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
