package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventKind discriminates the wire-level event union.
type EventKind string

const (
	EventMetadata     EventKind = "metadata"
	EventTextChunk    EventKind = "text_chunk"
	EventStatusUpdate EventKind = "status_update"
	EventUIAction     EventKind = "ui_action"
	EventDone         EventKind = "done"
	EventError        EventKind = "error"
)

// UIActionKind discriminates backend-directed widget instructions.
type UIActionKind string

const (
	UIActionOrderList     UIActionKind = "show_order_list"
	UIActionAddressSearch UIActionKind = "show_address_search"
	UIActionConfirmation  UIActionKind = "show_confirmation"
)

// ErrUnknownEventType marks records with an unrecognized top-level type.
// Callers drop these with a warning; new event types must not break old
// clients.
var ErrUnknownEventType = errors.New("unknown event type")

// StreamEvent is one decoded record of the chat stream. Kind selects which
// payload fields are meaningful.
type StreamEvent struct {
	Kind EventKind

	// EventMetadata and optionally EventUIAction. Opaque; stored, never read.
	State json.RawMessage

	// EventTextChunk
	Content string

	// EventStatusUpdate
	Status string

	// EventUIAction
	Action            UIActionKind
	Data              json.RawMessage
	RequiresSelection bool

	// EventError
	Message string
}

type wireEvent struct {
	Type              string          `json:"type"`
	State             json.RawMessage `json:"state"`
	Content           *string         `json:"content"`
	Status            string          `json:"status"`
	Action            string          `json:"ui_action"`
	Data              json.RawMessage `json:"ui_data"`
	RequiresSelection bool            `json:"requires_selection"`
	Message           string          `json:"message"`
}

// ParseEvent classifies one decoded record into the StreamEvent union and
// validates its required fields. Extra fields on the wire are ignored.
func ParseEvent(record string) (StreamEvent, error) {
	var raw wireEvent
	if err := json.Unmarshal([]byte(record), &raw); err != nil {
		return StreamEvent{}, fmt.Errorf("parse event record: %w", err)
	}

	switch EventKind(strings.TrimSpace(raw.Type)) {
	case EventMetadata:
		if len(raw.State) == 0 || string(raw.State) == "null" {
			return StreamEvent{}, errors.New("metadata event missing state")
		}
		return StreamEvent{Kind: EventMetadata, State: raw.State}, nil
	case EventTextChunk:
		if raw.Content == nil {
			return StreamEvent{}, errors.New("text_chunk event missing content")
		}
		return StreamEvent{Kind: EventTextChunk, Content: *raw.Content}, nil
	case EventStatusUpdate:
		return StreamEvent{Kind: EventStatusUpdate, Status: strings.TrimSpace(raw.Status)}, nil
	case EventUIAction:
		action := strings.TrimSpace(raw.Action)
		if action == "" {
			return StreamEvent{}, errors.New("ui_action event missing discriminator")
		}
		ev := StreamEvent{
			Kind:              EventUIAction,
			Action:            UIActionKind(action),
			Data:              raw.Data,
			RequiresSelection: raw.RequiresSelection,
		}
		if len(raw.State) > 0 && string(raw.State) != "null" {
			ev.State = raw.State
		}
		return ev, nil
	case EventDone:
		return StreamEvent{Kind: EventDone}, nil
	case EventError:
		return StreamEvent{Kind: EventError, Message: strings.TrimSpace(raw.Message)}, nil
	default:
		return StreamEvent{}, fmt.Errorf("%w: %q", ErrUnknownEventType, raw.Type)
	}
}
