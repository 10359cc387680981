package chatwoot

import "strings"

// MessageKind is the single routing classification of an inbound message.
type MessageKind string

const (
	KindGenuine       MessageKind = "genuine"
	KindActivity      MessageKind = "activity"
	KindSystemEcho    MessageKind = "system_echo"
	KindAgentAuthored MessageKind = "agent_authored"
	KindPrivateNote   MessageKind = "private_note"
	KindEmpty         MessageKind = "empty"
)

// Routable reports whether a message of this kind may reach the reply
// generator. Only genuine customer content is.
func (k MessageKind) Routable() bool {
	return k == KindGenuine
}

// BotMarkerAttribute is set in content_attributes on every message this
// service posts, so its own echoes are recognised without string matching.
const BotMarkerAttribute = "mortgage_bot"

// systemMarkers are lower-cased substrings that identify synthetic content:
// form-submission echoes and platform join/assignment notices.
var systemMarkers = []string{
	"form submission",
	"form submitted",
	"new lead submitted",
	"application summary",
	"has joined the conversation",
	"joined the chat",
	"conversation was reopened",
	"conversation was marked resolved",
	"was assigned to",
	"self-assigned",
}

// Classify evaluates a message once. Precedence: empty, private, activity,
// agent-authored, system echo, genuine.
func Classify(msg *Message) MessageKind {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return KindEmpty
	}
	if msg.Private {
		return KindPrivateNote
	}
	if msg.MessageType == MessageActivity {
		return KindActivity
	}
	if msg.MessageType == MessageOutgoing || msg.MessageType == MessageTemplate {
		return KindAgentAuthored
	}
	if msg.Sender != nil {
		switch msg.Sender.Type {
		case SenderUser, SenderAgent, SenderAgentBot:
			return KindAgentAuthored
		}
	}
	if _, ok := msg.ContentAttributes[BotMarkerAttribute]; ok {
		return KindSystemEcho
	}
	content := strings.ToLower(msg.Content)
	for _, marker := range systemMarkers {
		if strings.Contains(content, marker) {
			return KindSystemEcho
		}
	}
	return KindGenuine
}
