package chatwoot

import (
	"errors"
	"strings"
)

// OutgoingMessage is the body of POST .../messages.
type OutgoingMessage struct {
	Content           string         `json:"content"`
	MessageType       string         `json:"message_type,omitempty"`
	Private           bool           `json:"private"`
	ContentAttributes map[string]any `json:"content_attributes,omitempty"`
}

func (m OutgoingMessage) validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("chatwoot: message content required")
	}
	switch m.MessageType {
	case "", MessageOutgoing, MessageIncoming, MessageActivity:
	default:
		return errors.New("chatwoot: message_type must be incoming, outgoing or activity")
	}
	return nil
}

// BotMessage returns an outgoing public message tagged with the bot marker.
func BotMessage(content string, attrs map[string]any) OutgoingMessage {
	ca := map[string]any{BotMarkerAttribute: true}
	for k, v := range attrs {
		ca[k] = v
	}
	return OutgoingMessage{Content: content, MessageType: MessageOutgoing, ContentAttributes: ca}
}

// MessageResponse is the subset of the created message we read back.
type MessageResponse struct {
	ID             int64  `json:"id"`
	Content        string `json:"content"`
	ConversationID int64  `json:"conversation_id"`
	CreatedAt      int64  `json:"created_at"`
}
