package leads

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/analytics"
	"github.com/wolfman30/mortgage-ai-platform/internal/compliance"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// EventRecorder receives conversion events.
type EventRecorder interface {
	Record(ctx context.Context, evt analytics.ConversionEvent) error
}

// Notifier alerts brokers about hot leads.
type Notifier interface {
	NotifyPremiumLead(ctx context.Context, lead *Lead, p persona.Persona, calc affordability.Result) error
}

// ConversationLinker attaches a scored lead to an open chat conversation.
type ConversationLinker interface {
	LinkLead(ctx context.Context, conversationID int64, lead *Lead, p persona.Persona) error
}

// Submission is everything produced for one form submission.
type Submission struct {
	Lead        *Lead                `json:"lead"`
	Persona     persona.Persona      `json:"persona"`
	Calculation affordability.Result `json:"calculation"`
}

// Service scores, stores and fans out lead submissions.
type Service struct {
	repo     Repository
	selector *persona.Selector
	rules    affordability.Rules
	events   EventRecorder
	audit    *compliance.AuditService
	notifier Notifier
	linker   ConversationLinker
	logger   *logging.Logger
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithEventRecorder sends conversion events to r.
func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) { s.events = r }
}

// WithAudit enables the compliance trail.
func WithAudit(a *compliance.AuditService) ServiceOption {
	return func(s *Service) { s.audit = a }
}

// WithNotifier alerts on premium leads.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithConversationLinker pushes new leads into their chat conversation.
func WithConversationLinker(l ConversationLinker) ServiceOption {
	return func(s *Service) { s.linker = l }
}

// WithRules overrides the calculator rules.
func WithRules(r affordability.Rules) ServiceOption {
	return func(s *Service) { s.rules = r }
}

// NewService wires a lead service.
func NewService(repo Repository, selector *persona.Selector, logger *logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if selector == nil {
		selector = persona.NewSelector(0)
	}
	s := &Service{
		repo:     repo,
		selector: selector,
		rules:    affordability.DefaultRules(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and stores a profile. Only validation and storage errors
// are returned; downstream fan-out failures are logged.
func (s *Service) Submit(ctx context.Context, profile ApplicantProfile) (*Submission, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	score := ScoreProfile(profile)
	p := s.selector.Select(score.Value, persona.Context{
		LoanType: string(profile.LoanType),
		Urgent:   profile.Urgent,
	})

	lead, err := s.repo.Save(ctx, &Lead{
		LeadKey:   profile.Key(),
		Profile:   profile,
		Score:     score,
		PersonaID: p.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("leads: save submission: %w", err)
	}
	calc := affordability.CalculateWithRules(profile.CalculatorInput(), s.rules)

	s.logger.Info("lead submitted",
		"lead_id", lead.ID,
		"version", lead.SnapshotVersion,
		"score", score.Value,
		"category", score.Category,
		"persona", p.ID,
	)

	if err := s.audit.LogLeadSubmitted(ctx, lead.ID, lead.SnapshotVersion, score.Value, string(score.Category)); err != nil {
		s.logger.Warn("lead audit failed", "lead_id", lead.ID, "error", err)
	}
	s.recordEvents(ctx, lead, p)

	if s.linker != nil && profile.ConversationID > 0 {
		if err := s.linker.LinkLead(ctx, profile.ConversationID, lead, p); err != nil {
			s.logger.Warn("link lead to conversation failed", "lead_id", lead.ID, "conversation_id", profile.ConversationID, "error", err)
		}
	}
	if s.notifier != nil && score.Category == CategoryPremium {
		if err := s.notifier.NotifyPremiumLead(ctx, lead, p, calc); err != nil {
			s.logger.Warn("premium lead alert failed", "lead_id", lead.ID, "error", err)
		}
	}

	return &Submission{Lead: lead, Persona: p, Calculation: calc.Rounded()}, nil
}

func (s *Service) recordEvents(ctx context.Context, lead *Lead, p persona.Persona) {
	if s.events == nil {
		return
	}
	session := lead.LeadKey
	if lead.Profile.ConversationID > 0 {
		session = strconv.FormatInt(lead.Profile.ConversationID, 10)
	}
	score := lead.Score.Value
	evts := []analytics.ConversionEvent{
		{Name: analytics.EventFormSubmitted, SessionID: session, LeadScore: &score, Properties: map[string]any{
			"loan_type":     string(lead.Profile.LoanType),
			"property_type": string(lead.Profile.PropertyType),
		}},
		{Name: analytics.EventLeadScored, SessionID: session, LeadScore: &score, Properties: map[string]any{
			"category": string(lead.Score.Category),
		}},
		{Name: analytics.EventBrokerAssigned, SessionID: session, LeadScore: &score, Properties: map[string]any{
			"persona":      p.ID,
			"persona_type": string(p.Type),
		}},
	}
	for _, evt := range evts {
		if err := s.events.Record(ctx, evt); err != nil {
			s.logger.Warn("record lead event failed", "event", evt.Name, "error", err)
		}
	}
}

// Get returns one snapshot.
func (s *Service) Get(ctx context.Context, id string) (*Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the newest snapshot of each lead.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	return s.repo.List(ctx, filter)
}
