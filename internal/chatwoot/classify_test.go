package chatwoot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	customer := &Sender{ID: 1, Type: SenderContact}
	tests := []struct {
		name string
		msg  *Message
		want MessageKind
	}{
		{"nil", nil, KindEmpty},
		{"blank", &Message{Content: "   ", MessageType: MessageIncoming, Sender: customer}, KindEmpty},
		{"private note", &Message{Content: "call back later", MessageType: MessageIncoming, Private: true, Sender: customer}, KindPrivateNote},
		{"activity", &Message{Content: "Conversation was reopened", MessageType: MessageActivity}, KindActivity},
		{"agent outgoing", &Message{Content: "Hi there", MessageType: MessageOutgoing, Sender: &Sender{Type: SenderUser}}, KindAgentAuthored},
		{"agent incoming sender", &Message{Content: "testing", MessageType: MessageIncoming, Sender: &Sender{Type: SenderAgent}}, KindAgentAuthored},
		{"bot sender", &Message{Content: "hello", MessageType: MessageIncoming, Sender: &Sender{Type: SenderAgentBot}}, KindAgentAuthored},
		{"template", &Message{Content: "Rate card", MessageType: MessageTemplate}, KindAgentAuthored},
		{"form echo", &Message{Content: "📋 Form Submission: Daniel Koh, HDB, $800k", MessageType: MessageIncoming, Sender: customer}, KindSystemEcho},
		{"join notice", &Message{Content: "Rachel has joined the conversation", MessageType: MessageIncoming, Sender: customer}, KindSystemEcho},
		{"bot marker", &Message{Content: "Your estimate", MessageType: MessageIncoming, Sender: customer, ContentAttributes: map[string]any{BotMarkerAttribute: true}}, KindSystemEcho},
		{"genuine", &Message{Content: "Can I afford a condo at 1.2m?", MessageType: MessageIncoming, Sender: customer}, KindGenuine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == KindGenuine, got.Routable())
		})
	}
}

// Activity, private and agent-authored messages must never reach the reply
// generator, whatever their content says.
func TestClassifyNeverRoutesFilteredMessages(t *testing.T) {
	contents := []string{"how much can I borrow", "hi", "TDSR?", "form submitted"}
	for _, content := range contents {
		assert.False(t, Classify(&Message{Content: content, MessageType: MessageActivity}).Routable())
		assert.False(t, Classify(&Message{Content: content, MessageType: MessageIncoming, Private: true}).Routable())
		assert.False(t, Classify(&Message{Content: content, MessageType: MessageIncoming, Sender: &Sender{Type: SenderAgent}}).Routable())
	}
}
