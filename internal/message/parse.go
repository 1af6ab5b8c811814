package message

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

// Parse converts a decoded envelope into a typed Message.
//
// Returns errors.ErrUnknownAction for action tags outside the protocol so that
// receivers can log and skip them. Returns a MessageParseError when the tag is
// known but a required field is missing or has the wrong type.
func Parse(log *slog.Logger, data map[string]any) (Message, error) {
	action, ok := data["action"].(string)
	if !ok {
		log.Debug("Message missing 'action' field")

		return nil, &errors.MessageParseError{
			Message: "missing or invalid 'action' field",
			Err:     fmt.Errorf("missing or invalid 'action' field"),
			Data:    data,
		}
	}

	var (
		msg Message
		err error
	)

	switch a := Action(action); a {
	case ActionReady:
		server, _ := data["server"].(bool)
		msg = &Ready{Server: server}
	case ActionRequest:
		msg, err = parseRequest(data)
	case ActionResponse:
		msg, err = parseResponse(data)
	case ActionStream:
		msg, err = parseStream(data)
	case ActionFormCreate:
		msg, err = parseFormCreate(data)
	case ActionFormEnd:
		formID, _ := data["formId"].(string)
		msg = &FormEnd{FormID: formID, Schema: data["schema"], Data: data["data"]}
	case ActionFormEvent:
		msg, err = parseFormEvent(data)
	case ActionConfigGet, ActionConfigUpdate, ActionConfigSave, ActionConfigSchema,
		ActionI18nLang, ActionI18nTranslations:
		msg, err = parseHostCall(a, data)
	case ActionBodyClass:
		class, _ := data["class"].(string)
		msg = &BodyClass{Class: class}
	case ActionInlineStyle:
		style, _ := data["style"].(string)
		msg = &InlineStyle{Style: style}
	case ActionLinkElement:
		href, _ := data["href"].(string)
		rel, _ := data["rel"].(string)
		msg = &LinkElement{Href: href, Rel: rel}
	case ActionScrollHeight:
		msg = &ScrollHeight{Height: toInt(data["scrollHeight"])}
	case ActionClose:
		msg = &CloseSettings{}
	case ActionSpinnerShow, ActionSpinnerHide:
		msg = &Spinner{Visible: a == ActionSpinnerShow}
	case ActionSchemaShow, ActionSchemaHide:
		msg = &SchemaForm{Visible: a == ActionSchemaShow}
	case ActionToastSuccess, ActionToastError, ActionToastWarning, ActionToastInfo:
		text, _ := data["message"].(string)
		title, _ := data["title"].(string)
		msg = &Toast{
			Level:   ToastLevel(strings.TrimPrefix(action, "toast.")),
			Message: text,
			Title:   title,
		}
	default:
		log.Debug("Skipping unknown action", "action", action)

		return nil, errors.ErrUnknownAction
	}

	if err != nil {
		return nil, &errors.MessageParseError{
			Message: err.Error(),
			Err:     err,
			Data:    data,
		}
	}

	return msg, nil
}

func parseRequest(data map[string]any) (*Request, error) {
	requestID, err := requireString(data, "requestId")
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	path, err := requireString(data, "path")
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	return &Request{Path: path, Body: data["body"], RequestID: requestID}, nil
}

func parseResponse(data map[string]any) (*Response, error) {
	requestID, err := requireString(data, "requestId")
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	success, _ := data["success"].(bool)

	return &Response{RequestID: requestID, Success: success, Data: data["data"]}, nil
}

func parseStream(data map[string]any) (*Stream, error) {
	event, err := requireString(data, "event")
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	return &Stream{Event: event, Data: data["data"]}, nil
}

func parseFormCreate(data map[string]any) (*FormCreate, error) {
	formID, err := requireString(data, "formId")
	if err != nil {
		return nil, fmt.Errorf("form.create: %w", err)
	}

	submit, _ := data["submitButton"].(string)
	cancel, _ := data["cancelButton"].(string)

	return &FormCreate{
		FormID:       formID,
		Schema:       data["schema"],
		Data:         data["data"],
		SubmitButton: submit,
		CancelButton: cancel,
	}, nil
}

func parseFormEvent(data map[string]any) (*FormEvent, error) {
	formID, err := requireString(data, "formId")
	if err != nil {
		return nil, fmt.Errorf("form.event: %w", err)
	}

	kind, _ := data["formEvent"].(string)
	if !FormEventKind(kind).Valid() {
		return nil, fmt.Errorf("form.event: invalid 'formEvent' %q", kind)
	}

	return &FormEvent{FormID: formID, Kind: FormEventKind(kind), FormData: data["formData"]}, nil
}

func parseHostCall(op Action, data map[string]any) (*HostCall, error) {
	requestID, err := requireString(data, "requestId")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &HostCall{Op: op, RequestID: requestID, PluginConfig: data["pluginConfig"]}, nil
}

func requireString(data map[string]any, key string) (string, error) {
	s, ok := data[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("missing or invalid '%s' field", key)
	}

	return s, nil
}

// toInt accepts the numeric types produced by the JSON and CBOR decoders.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case float32:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return 0
	}
}
