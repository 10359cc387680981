// Package chatwoot talks to the Chatwoot REST API and decodes its webhooks.
package chatwoot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// EventType is the webhook discriminator.
type EventType string

const (
	EventConversationCreated       EventType = "conversation_created"
	EventMessageCreated            EventType = "message_created"
	EventConversationStatusChanged EventType = "conversation_status_changed"
)

// Handled reports whether the service acts on this event type. Chatwoot sends
// many more (conversation_updated, webwidget_triggered, ...) which are acked
// and dropped.
func (e EventType) Handled() bool {
	switch e {
	case EventConversationCreated, EventMessageCreated, EventConversationStatusChanged:
		return true
	}
	return false
}

// Conversation statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusPending  = "pending"
	StatusSnoozed  = "snoozed"
)

// Message types as they appear in webhooks.
const (
	MessageIncoming = "incoming"
	MessageOutgoing = "outgoing"
	MessageActivity = "activity"
	MessageTemplate = "template"
)

// Sender types. Chatwoot calls agents "user".
const (
	SenderContact  = "contact"
	SenderUser     = "user"
	SenderAgent    = "agent"
	SenderAgentBot = "agent_bot"
)

var ErrInvalidPayload = errors.New("chatwoot: invalid webhook payload")

// Sender is the author of a message or the contact of a conversation.
type Sender struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ConversationMeta carries the contact and assignee.
type ConversationMeta struct {
	Sender   *Sender `json:"sender,omitempty"`
	Assignee *Sender `json:"assignee,omitempty"`
}

// Conversation is the nested conversation object.
type Conversation struct {
	ID               int64            `json:"id"`
	Status           string           `json:"status,omitempty"`
	CustomAttributes map[string]any   `json:"custom_attributes,omitempty"`
	Meta             ConversationMeta `json:"meta"`
}

// Message is a normalized chat message.
type Message struct {
	ID                int64          `json:"id"`
	Content           string         `json:"content"`
	MessageType       string         `json:"message_type"`
	Private           bool           `json:"private"`
	Sender            *Sender        `json:"sender,omitempty"`
	ContentAttributes map[string]any `json:"content_attributes,omitempty"`
}

// Event is a decoded webhook reduced to the fields the service consumes.
type Event struct {
	Type         EventType    `json:"event"`
	AccountID    int64        `json:"account_id,omitempty"`
	Conversation Conversation `json:"conversation"`
	// Message is set for message_created only.
	Message *Message `json:"message,omitempty"`
}

// ConversationID is shorthand for e.Conversation.ID.
func (e *Event) ConversationID() int64 {
	return e.Conversation.ID
}

// Contact returns the conversation's contact, if known.
func (e *Event) Contact() *Sender {
	if e.Conversation.Meta.Sender != nil {
		return e.Conversation.Meta.Sender
	}
	if e.Message != nil && e.Message.Sender != nil && e.Message.Sender.Type == SenderContact {
		return e.Message.Sender
	}
	return nil
}

// rawWebhook mirrors the payload. message_created puts the message at the
// top level with the conversation nested; conversation_* events put the
// conversation at the top level.
type rawWebhook struct {
	Event             EventType         `json:"event"`
	ID                flexInt           `json:"id"`
	Content           *string           `json:"content"`
	MessageType       flexMessageType   `json:"message_type"`
	Private           bool              `json:"private"`
	Sender            *Sender           `json:"sender"`
	ContentAttributes map[string]any    `json:"content_attributes"`
	Status            string            `json:"status"`
	CustomAttributes  map[string]any    `json:"custom_attributes"`
	Meta              *ConversationMeta `json:"meta"`
	Conversation      *struct {
		ID               flexInt          `json:"id"`
		Status           string           `json:"status"`
		CustomAttributes map[string]any   `json:"custom_attributes"`
		Meta             ConversationMeta `json:"meta"`
	} `json:"conversation"`
	Account *struct {
		ID int64 `json:"id"`
	} `json:"account"`
}

// flexInt accepts numbers or numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("chatwoot: invalid id %s", b)
	}
	*f = flexInt(v)
	return nil
}

// flexMessageType accepts the string form and the integer enum some API
// versions emit (0 incoming, 1 outgoing, 2 activity, 3 template).
type flexMessageType string

func (f *flexMessageType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexMessageType(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		*f = ""
		return nil
	}
	switch n {
	case 0:
		*f = MessageIncoming
	case 1:
		*f = MessageOutgoing
	case 2:
		*f = MessageActivity
	case 3:
		*f = MessageTemplate
	}
	return nil
}

const webhookSchema = `{
	"type": "object",
	"required": ["event"],
	"properties": {
		"event": {"type": "string", "minLength": 1},
		"id": {"type": ["integer", "string"]},
		"content": {"type": ["string", "null"]},
		"private": {"type": ["boolean", "null"]},
		"custom_attributes": {"type": ["object", "null"]},
		"conversation": {
			"type": "object",
			"required": ["id"],
			"properties": {"id": {"type": ["integer", "string"]}}
		}
	},
	"allOf": [
		{
			"if": {"properties": {"event": {"const": "message_created"}}},
			"then": {"required": ["id", "conversation"]}
		},
		{
			"if": {"properties": {"event": {"enum": ["conversation_created", "conversation_status_changed"]}}},
			"then": {"required": ["id"]}
		}
	]
}`

var webhookSchemaLoader = gojsonschema.NewStringLoader(webhookSchema)

// ValidatePayload checks the structural shape of a webhook body. It returns
// one detail per problem, nil when valid.
func ValidatePayload(body []byte) ([]string, error) {
	if !json.Valid(body) {
		return []string{"body is not valid JSON"}, nil
	}
	result, err := gojsonschema.Validate(webhookSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("chatwoot: validate webhook: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return details, nil
}

// ParseEvent validates and normalizes a webhook body. Validation failures are
// returned as a *PayloadError wrapping ErrInvalidPayload.
func ParseEvent(body []byte) (*Event, error) {
	details, err := ValidatePayload(body)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		return nil, &PayloadError{Details: details}
	}
	var raw rawWebhook
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &PayloadError{Details: []string{err.Error()}}
	}

	evt := &Event{Type: raw.Event}
	if raw.Account != nil {
		evt.AccountID = raw.Account.ID
	}
	switch raw.Event {
	case EventMessageCreated:
		evt.Conversation = Conversation{
			ID:               int64(raw.Conversation.ID),
			Status:           raw.Conversation.Status,
			CustomAttributes: raw.Conversation.CustomAttributes,
			Meta:             raw.Conversation.Meta,
		}
		msg := &Message{
			ID:                int64(raw.ID),
			MessageType:       string(raw.MessageType),
			Private:           raw.Private,
			Sender:            raw.Sender,
			ContentAttributes: raw.ContentAttributes,
		}
		if raw.Content != nil {
			msg.Content = *raw.Content
		}
		evt.Message = msg
	default:
		evt.Conversation = Conversation{
			ID:               int64(raw.ID),
			Status:           raw.Status,
			CustomAttributes: raw.CustomAttributes,
		}
		if raw.Meta != nil {
			evt.Conversation.Meta = *raw.Meta
		}
	}
	if raw.Event.Handled() && evt.Conversation.ID <= 0 {
		return nil, &PayloadError{Details: []string{"conversation id must be a positive integer"}}
	}
	return evt, nil
}

// PayloadError lists schema problems in a webhook body.
type PayloadError struct {
	Details []string
}

func (e *PayloadError) Error() string {
	return ErrInvalidPayload.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *PayloadError) Unwrap() error {
	return ErrInvalidPayload
}
