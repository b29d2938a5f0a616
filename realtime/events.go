package realtime

import (
	"encoding/json"

	"github.com/jrsteele09/go-chat-client/apimodel"
)

// Inbound frame types.
const (
	EventMessage          = "message"
	EventTyping           = "typing"
	EventReadReceipt      = "read_receipt"
	EventUserStatus       = "user_status"
	EventMessageSent      = "message_sent"
	EventError            = "error"
	EventConnectionStatus = "connection_status" // generated locally, never received
)

// Event is one inbound frame. Raw holds the complete frame for Decode.
type Event struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// Decode unmarshals the full frame into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// Handler receives events of the type it was registered for.
type Handler func(Event)

// ChatMessage is the payload of a "message" frame.
type ChatMessage = apimodel.ChatMessage

type Typing struct {
	SenderEmail string `json:"sender_email"`
	IsTyping    bool   `json:"is_typing"`
}

type ReadReceipt struct {
	SenderEmail string `json:"sender_email"`
	ReaderEmail string `json:"reader_email"`
}

type UserStatus struct {
	UserEmail string `json:"user_email"`
	IsOnline  bool   `json:"is_online"`
}

type ConnectionStatus struct {
	Connected bool `json:"connected"`
}

type MessageSent struct {
	MessageID string `json:"message_id"`
}

type ServerError struct {
	Message string `json:"message"`
}

func newEvent(eventType string, payload any) Event {
	frame := map[string]any{"type": eventType}
	if data, err := json.Marshal(payload); err == nil {
		_ = json.Unmarshal(data, &frame)
	}
	frame["type"] = eventType
	raw, _ := json.Marshal(frame)
	return Event{Type: eventType, Raw: raw}
}
