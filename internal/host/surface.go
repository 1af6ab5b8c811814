package host

import (
	"log/slog"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
)

// Surface renders what the UI peer asks the host to display.
type Surface interface {
	Toast(level message.ToastLevel, text, title string)
	SetSpinner(visible bool)
	SetSchemaForm(visible bool)
	SetHeight(px int)
	CloseSettings()
	OpenForm(form *message.FormCreate)

	// CloseForm tears down formID. An empty id means the current form.
	CloseForm(formID string)
}

// NopSurface discards every display request.
type NopSurface struct{}

func (NopSurface) Toast(message.ToastLevel, string, string) {}
func (NopSurface) SetSpinner(bool)                          {}
func (NopSurface) SetSchemaForm(bool)                       {}
func (NopSurface) SetHeight(int)                            {}
func (NopSurface) CloseSettings()                           {}
func (NopSurface) OpenForm(*message.FormCreate)             {}
func (NopSurface) CloseForm(string)                         {}

// LogSurface writes display requests to a logger. The CLI host uses it in
// place of a real settings page.
type LogSurface struct {
	Log *slog.Logger
}

// Compile-time verification that the surfaces implement Surface.
var (
	_ Surface = NopSurface{}
	_ Surface = LogSurface{}
)

func (s LogSurface) Toast(level message.ToastLevel, text, title string) {
	s.Log.Info("Toast", "level", level, "message", text, "title", title)
}

func (s LogSurface) SetSpinner(visible bool) {
	s.Log.Info("Spinner", "visible", visible)
}

func (s LogSurface) SetSchemaForm(visible bool) {
	s.Log.Info("Schema form", "visible", visible)
}

func (s LogSurface) SetHeight(px int) {
	s.Log.Debug("Content height", "px", px)
}

func (s LogSurface) CloseSettings() {
	s.Log.Info("Close settings requested")
}

func (s LogSurface) OpenForm(form *message.FormCreate) {
	s.Log.Info("Form opened", "form_id", form.FormID, "submit_button", form.SubmitButton,
		"cancel_button", form.CancelButton)
}

func (s LogSurface) CloseForm(formID string) {
	s.Log.Info("Form closed", "form_id", formID)
}
