package message

import (
	"encoding/json"
	"fmt"
)

// Encode converts a typed Message into its flat wire envelope.
func Encode(msg Message) map[string]any {
	env := map[string]any{"action": string(msg.Action())}

	switch m := msg.(type) {
	case *Ready:
		if m.Server {
			env["server"] = true
		}
	case *Request:
		env["path"] = m.Path
		env["body"] = m.Body
		env["requestId"] = m.RequestID
	case *Response:
		env["requestId"] = m.RequestID
		env["success"] = m.Success
		env["data"] = m.Data
	case *Stream:
		env["event"] = m.Event
		env["data"] = m.Data
	case *FormCreate:
		env["formId"] = m.FormID
		env["schema"] = m.Schema
		env["data"] = m.Data

		if m.SubmitButton != "" {
			env["submitButton"] = m.SubmitButton
		}

		if m.CancelButton != "" {
			env["cancelButton"] = m.CancelButton
		}
	case *FormEnd:
		if m.FormID != "" {
			env["formId"] = m.FormID
			env["schema"] = m.Schema
			env["data"] = m.Data
		}
	case *FormEvent:
		env["formId"] = m.FormID
		env["formEvent"] = string(m.Kind)
		env["formData"] = m.FormData
	case *HostCall:
		env["requestId"] = m.RequestID

		if m.PluginConfig != nil {
			env["pluginConfig"] = m.PluginConfig
		}
	case *BodyClass:
		env["class"] = m.Class
	case *InlineStyle:
		env["style"] = m.Style
	case *LinkElement:
		env["href"] = m.Href
		env["rel"] = m.Rel
	case *ScrollHeight:
		env["scrollHeight"] = m.Height
	case *Toast:
		env["message"] = m.Message

		if m.Title != "" {
			env["title"] = m.Title
		}
	case *CloseSettings, *Spinner, *SchemaForm:
		// action tag only
	}

	return env
}

// Bind converts an opaque payload into dst through a JSON round trip.
// A nil payload leaves dst untouched.
func Bind(src any, dst any) error {
	if src == nil {
		return nil
	}

	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	return nil
}
