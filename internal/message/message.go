package message

// Action is the tag that identifies a message kind on the wire.
type Action string

const (
	ActionReady    Action = "ready"
	ActionRequest  Action = "request"
	ActionResponse Action = "response"
	ActionStream   Action = "stream"

	ActionFormCreate Action = "form.create"
	ActionFormEnd    Action = "form.end"
	ActionFormEvent  Action = "form.event"

	ActionConfigGet        Action = "config.get"
	ActionConfigUpdate     Action = "config.update"
	ActionConfigSave       Action = "config.save"
	ActionConfigSchema     Action = "config.schema"
	ActionI18nLang         Action = "i18n.lang"
	ActionI18nTranslations Action = "i18n.translations"

	ActionBodyClass    Action = "body-class"
	ActionInlineStyle  Action = "inline-style"
	ActionLinkElement  Action = "link-element"
	ActionScrollHeight Action = "scrollHeight"
	ActionClose        Action = "close"
	ActionSpinnerShow  Action = "spinner.show"
	ActionSpinnerHide  Action = "spinner.hide"
	ActionSchemaShow   Action = "schema.show"
	ActionSchemaHide   Action = "schema.hide"

	ActionToastSuccess Action = "toast.success"
	ActionToastError   Action = "toast.error"
	ActionToastWarning Action = "toast.warning"
	ActionToastInfo    Action = "toast.info"
)

// IsHostCall reports whether the action is a correlated call answered by the
// host itself rather than forwarded to the plugin server.
func (a Action) IsHostCall() bool {
	switch a {
	case ActionConfigGet, ActionConfigUpdate, ActionConfigSave, ActionConfigSchema,
		ActionI18nLang, ActionI18nTranslations:
		return true
	default:
		return false
	}
}

// Message is implemented by every typed bridge message.
type Message interface {
	Action() Action
	message()
}

// Compile-time verification that all message types implement Message.
var (
	_ Message = (*Ready)(nil)
	_ Message = (*Request)(nil)
	_ Message = (*Response)(nil)
	_ Message = (*Stream)(nil)
	_ Message = (*FormCreate)(nil)
	_ Message = (*FormEnd)(nil)
	_ Message = (*FormEvent)(nil)
	_ Message = (*HostCall)(nil)
	_ Message = (*BodyClass)(nil)
	_ Message = (*InlineStyle)(nil)
	_ Message = (*LinkElement)(nil)
	_ Message = (*ScrollHeight)(nil)
	_ Message = (*CloseSettings)(nil)
	_ Message = (*Spinner)(nil)
	_ Message = (*SchemaForm)(nil)
	_ Message = (*Toast)(nil)
)

// Ready announces that the sender is running and can take requests.
type Ready struct {
	// Server is set when the plugin server script sent the announcement.
	Server bool
}

// Request is a call to a path registered on the plugin server.
type Request struct {
	Path      string
	Body      any
	RequestID string
}

// Response answers the call identified by RequestID.
type Response struct {
	RequestID string
	Success   bool
	Data      any
}

// Stream is a fire-and-forget push event.
type Stream struct {
	Event string
	Data  any
}

// FormCreate asks the host to render a form.
type FormCreate struct {
	FormID       string
	Schema       any
	Data         any
	SubmitButton string
	CancelButton string
}

// FormEnd asks the host to tear down a rendered form. An empty FormID ends
// whichever form is currently displayed.
type FormEnd struct {
	FormID string
	Schema any
	Data   any
}

// FormEventKind discriminates form sub-events.
type FormEventKind string

const (
	FormChange FormEventKind = "change"
	FormSubmit FormEventKind = "submit"
	FormCancel FormEventKind = "cancel"
)

// Valid reports whether k is one of the known sub-event kinds.
func (k FormEventKind) Valid() bool {
	return k == FormChange || k == FormSubmit || k == FormCancel
}

// FormEvent carries one interaction with an open form.
type FormEvent struct {
	FormID   string
	Kind     FormEventKind
	FormData any
}

// HostCall is a correlated call answered by the host (config.*, i18n.*).
type HostCall struct {
	Op           Action
	RequestID    string
	PluginConfig any
}

// BodyClass adds a class to the peer's document body.
type BodyClass struct {
	Class string
}

// InlineStyle injects a stylesheet into the peer.
type InlineStyle struct {
	Style string
}

// LinkElement injects a link element into the peer.
type LinkElement struct {
	Href string
	Rel  string
}

// ScrollHeight reports the peer's content height.
type ScrollHeight struct {
	Height int
}

// CloseSettings asks the host to close the settings surface.
type CloseSettings struct{}

// Spinner shows or hides the loading overlay.
type Spinner struct {
	Visible bool
}

// SchemaForm shows or hides the schema-generated form.
type SchemaForm struct {
	Visible bool
}

// ToastLevel selects the toast style.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastWarning ToastLevel = "warning"
	ToastInfo    ToastLevel = "info"
)

// Toast is a popup notification request.
type Toast struct {
	Level   ToastLevel
	Message string
	Title   string
}

func (*Ready) Action() Action         { return ActionReady }
func (*Request) Action() Action       { return ActionRequest }
func (*Response) Action() Action      { return ActionResponse }
func (*Stream) Action() Action        { return ActionStream }
func (*FormCreate) Action() Action    { return ActionFormCreate }
func (*FormEnd) Action() Action       { return ActionFormEnd }
func (*FormEvent) Action() Action     { return ActionFormEvent }
func (m *HostCall) Action() Action    { return m.Op }
func (*BodyClass) Action() Action     { return ActionBodyClass }
func (*InlineStyle) Action() Action   { return ActionInlineStyle }
func (*LinkElement) Action() Action   { return ActionLinkElement }
func (*ScrollHeight) Action() Action  { return ActionScrollHeight }
func (*CloseSettings) Action() Action { return ActionClose }
func (m *Toast) Action() Action       { return Action("toast." + string(m.Level)) }

func (m *Spinner) Action() Action {
	if m.Visible {
		return ActionSpinnerShow
	}

	return ActionSpinnerHide
}

func (m *SchemaForm) Action() Action {
	if m.Visible {
		return ActionSchemaShow
	}

	return ActionSchemaHide
}

func (*Ready) message()         {}
func (*Request) message()       {}
func (*Response) message()      {}
func (*Stream) message()        {}
func (*FormCreate) message()    {}
func (*FormEnd) message()       {}
func (*FormEvent) message()     {}
func (*HostCall) message()      {}
func (*BodyClass) message()     {}
func (*InlineStyle) message()   {}
func (*LinkElement) message()   {}
func (*ScrollHeight) message()  {}
func (*CloseSettings) message() {}
func (*Spinner) message()       {}
func (*SchemaForm) message()    {}
func (*Toast) message()         {}
