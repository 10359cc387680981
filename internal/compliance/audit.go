// Package compliance records the audit trail MAS expects for advice-adjacent
// activity and appends the estimate disclaimers to calculator replies.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventLeadSubmitted is logged when an applicant profile is stored.
	EventLeadSubmitted AuditEventType = "lead.submitted"
	// EventCalculationSent is logged when affordability figures reach a customer.
	EventCalculationSent AuditEventType = "calculation.sent"
	// EventReplyPosted is logged for every automated reply.
	EventReplyPosted AuditEventType = "reply.posted"
	// EventConversationResolved is logged when conversation state is dropped.
	EventConversationResolved AuditEventType = "conversation.resolved"
	// EventReportGenerated is logged when an affordability report is produced.
	EventReportGenerated AuditEventType = "report.generated"
)

// AuditEvent represents an immutable compliance audit record.
type AuditEvent struct {
	ID             string          `json:"id"`
	EventType      AuditEventType  `json:"event_type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	LeadID         string          `json:"lead_id,omitempty"`
	Persona        string          `json:"persona,omitempty"`
	Content        string          `json:"content,omitempty"`
	Flags          []string        `json:"flags,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AuditService writes to compliance_audit_events. A service built without a
// database is disabled and every call is a no-op.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service. db may be nil.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// Enabled reports whether events are persisted.
func (s *AuditService) Enabled() bool {
	return s != nil && s.db != nil
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if !s.Enabled() {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, conversation_id, lead_id, persona,
			content, flags, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.ConversationID),
		nullString(event.LeadID),
		nullString(event.Persona),
		nullString(event.Content),
		pq.Array(event.Flags),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogLeadSubmitted records a stored lead snapshot. Contact details are not
// copied into the audit trail.
func (s *AuditService) LogLeadSubmitted(ctx context.Context, leadID string, version int, score int, category string) error {
	details, _ := json.Marshal(map[string]any{
		"snapshot_version": version,
		"score":            score,
		"category":         category,
	})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventLeadSubmitted,
		LeadID:    leadID,
		Details:   details,
	})
}

// LogCalculationSent records affordability figures shown to a customer.
func (s *AuditService) LogCalculationSent(ctx context.Context, conversationID string, maxLoan float64, limitingFactor string, compliant bool) error {
	var flags []string
	if !compliant {
		flags = append(flags, "non_compliant")
	}
	details, _ := json.Marshal(map[string]any{
		"max_loan":        maxLoan,
		"limiting_factor": limitingFactor,
		"mas_compliant":   compliant,
	})
	return s.LogEvent(ctx, AuditEvent{
		EventType:      EventCalculationSent,
		ConversationID: conversationID,
		Flags:          flags,
		Details:        details,
	})
}

// ReplyOrigin says how a posted reply was produced. An empty LLMProvider
// means the reply was templated.
type ReplyOrigin struct {
	LLMProvider string
	LLMFallback bool
}

// LogReplyPosted records an automated reply and the persona that sent it.
func (s *AuditService) LogReplyPosted(ctx context.Context, conversationID, persona, content string, origin ReplyOrigin) error {
	var flags []string
	var details json.RawMessage
	if origin.LLMProvider != "" {
		flags = append(flags, "llm_drafted")
		if origin.LLMFallback {
			flags = append(flags, "llm_fallback")
		}
		details, _ = json.Marshal(map[string]any{"llm_provider": origin.LLMProvider})
	}
	return s.LogEvent(ctx, AuditEvent{
		EventType:      EventReplyPosted,
		ConversationID: conversationID,
		Persona:        persona,
		Content:        content,
		Flags:          flags,
		Details:        details,
	})
}

// LogConversationResolved records the end of a tracked conversation.
func (s *AuditService) LogConversationResolved(ctx context.Context, conversationID string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType:      EventConversationResolved,
		ConversationID: conversationID,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if !s.Enabled() {
		return nil, nil
	}
	query := `
		SELECT id, event_type, conversation_id, lead_id, persona,
			   content, flags, details, created_at
		FROM compliance_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.ConversationID != "" {
		query += fmt.Sprintf(" AND conversation_id = $%d", argIdx)
		args = append(args, filter.ConversationID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                             AuditEvent
			convID, leadID, persona, body sql.NullString
			details                       []byte
		)
		if err := rows.Scan(
			&e.ID, &e.EventType, &convID, &leadID, &persona,
			&body, pq.Array(&e.Flags), &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.ConversationID = convID.String
		e.LeadID = leadID.String
		e.Persona = persona.String
		e.Content = body.String
		e.Details = details
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: iterate audit events: %w", err)
	}
	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	ConversationID string
	EventType      AuditEventType
	StartTime      time.Time
	EndTime        time.Time
	Limit          int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
