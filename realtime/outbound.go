package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/pkg/errors"
)

// Outbound frame types.
const (
	OutboundMessage = "message"
	OutboundTyping  = "typing"
	OutboundRead    = "read"
)

// Outbound is a frame the client sends. Only the fields belonging to Type are
// serialised. LocalID identifies the frame while it is pending and never
// leaves the process.
type Outbound struct {
	Type          string
	ReceiverEmail string
	Content       string
	IsTyping      bool
	SenderEmail   string
	LocalID       string
}

func NewMessage(receiverEmail, content string) Outbound {
	return Outbound{Type: OutboundMessage, ReceiverEmail: receiverEmail, Content: content, LocalID: uuid.NewString()}
}

func NewTyping(receiverEmail string, isTyping bool) Outbound {
	return Outbound{Type: OutboundTyping, ReceiverEmail: receiverEmail, IsTyping: isTyping, LocalID: uuid.NewString()}
}

// NewReadReceipt tells senderEmail that their messages were read.
func NewReadReceipt(senderEmail string) Outbound {
	return Outbound{Type: OutboundRead, SenderEmail: senderEmail, LocalID: uuid.NewString()}
}

// Validate rejects frames the server has no type for.
func (o Outbound) Validate() error {
	switch o.Type {
	case OutboundMessage, OutboundTyping, OutboundRead:
		return nil
	}
	return errors.Wrapf(apperrors.ErrInvalidInput, "unknown outbound type %q", o.Type)
}

func (o Outbound) MarshalJSON() ([]byte, error) {
	switch o.Type {
	case OutboundMessage:
		return json.Marshal(struct {
			Type          string `json:"type"`
			ReceiverEmail string `json:"receiver_email"`
			Content       string `json:"content"`
		}{o.Type, o.ReceiverEmail, o.Content})
	case OutboundTyping:
		return json.Marshal(struct {
			Type          string `json:"type"`
			ReceiverEmail string `json:"receiver_email"`
			IsTyping      bool   `json:"is_typing"`
		}{o.Type, o.ReceiverEmail, o.IsTyping})
	case OutboundRead:
		return json.Marshal(struct {
			Type        string `json:"type"`
			SenderEmail string `json:"sender_email"`
		}{o.Type, o.SenderEmail})
	}
	return nil, errors.Errorf("unknown outbound type %q", o.Type)
}
