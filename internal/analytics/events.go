// Package analytics records conversion events and aggregates them into the
// dashboard. Counters live behind MetricsStore so the backend (memory, Redis,
// Prometheus) can change without touching call sites.
package analytics

import (
	"time"
)

// EventName enumerates the conversion events the service understands.
type EventName string

const (
	EventPageView             EventName = "page_view"
	EventFormStarted          EventName = "form_started"
	EventFormSubmitted        EventName = "form_submitted"
	EventLeadScored           EventName = "lead_scored"
	EventBrokerAssigned       EventName = "broker_assigned"
	EventChatStarted          EventName = "chat_started"
	EventMessageReceived      EventName = "message_received"
	EventReplySent            EventName = "reply_sent"
	EventCalculationDelivered EventName = "calculation_delivered"
	EventHandoffRequested     EventName = "handoff_requested"
	EventReportGenerated      EventName = "report_generated"
	EventConversationResolved EventName = "conversation_resolved"
)

// KnownEvents lists every EventName in funnel order.
var KnownEvents = []EventName{
	EventPageView,
	EventFormStarted,
	EventFormSubmitted,
	EventLeadScored,
	EventBrokerAssigned,
	EventChatStarted,
	EventMessageReceived,
	EventReplySent,
	EventCalculationDelivered,
	EventHandoffRequested,
	EventReportGenerated,
	EventConversationResolved,
}

// Valid reports whether n is a known event.
func (n EventName) Valid() bool {
	for _, k := range KnownEvents {
		if k == n {
			return true
		}
	}
	return false
}

// ConversionEvent is an immutable, append-only analytics record.
type ConversionEvent struct {
	ID         string         `json:"id"`
	Name       EventName      `json:"eventName"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"sessionId"`
	LeadScore  *int           `json:"leadScore,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Counter names derived from events. Dimensions are appended after a colon,
// e.g. "persona:rachel-tan".
func counterKeys(evt ConversionEvent) []string {
	keys := []string{"event:" + string(evt.Name)}
	if evt.Properties == nil {
		return keys
	}
	switch evt.Name {
	case EventLeadScored:
		if c, ok := evt.Properties["category"].(string); ok && c != "" {
			keys = append(keys, "category:"+c)
		}
	case EventBrokerAssigned:
		if p, ok := evt.Properties["persona"].(string); ok && p != "" {
			keys = append(keys, "persona:"+p)
		}
	case EventMessageReceived:
		if i, ok := evt.Properties["intent"].(string); ok && i != "" {
			keys = append(keys, "intent:"+i)
		}
	}
	return keys
}
