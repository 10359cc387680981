package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// LeadLinker pushes a scored form submission into its chat conversation:
// profile figures go into custom attributes, the tracker records the
// assignment, and the persona greets the customer once.
type LeadLinker struct {
	tracker *Tracker
	chat    ChatwootAPI
	guard   *ReplyGuard
	logger  *logging.Logger
}

var _ leads.ConversationLinker = (*LeadLinker)(nil)

func NewLeadLinker(tracker *Tracker, chat ChatwootAPI, guard *ReplyGuard, logger *logging.Logger) *LeadLinker {
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadLinker{tracker: tracker, chat: chat, guard: guard, logger: logger}
}

// LinkLead implements leads.ConversationLinker.
func (l *LeadLinker) LinkLead(ctx context.Context, conversationID int64, lead *leads.Lead, p persona.Persona) error {
	if lead == nil {
		return fmt.Errorf("conversation: link lead: nil lead")
	}
	if err := l.chat.UpdateCustomAttributes(ctx, conversationID, LeadAttributes(lead, p)); err != nil {
		return fmt.Errorf("conversation: link lead attributes: %w", err)
	}

	if _, err := l.tracker.MarkAssigned(ctx, conversationID, Assignment{
		PersonaID:    p.ID,
		LeadID:       lead.ID,
		LeadScore:    lead.Score.Value,
		LeadCategory: string(lead.Score.Category),
	}); err != nil {
		return err
	}
	if _, err := l.tracker.MarkFormSubmitted(ctx, conversationID); err != nil {
		return err
	}

	token := GreetingToken(conversationID, lead.ID)
	claimed, err := l.guard.Claim(ctx, token)
	if err != nil || !claimed {
		return err
	}
	greeting := chatwoot.BotMessage(p.Greeting(firstName(lead.Profile.Name)), map[string]any{
		"persona_id": p.ID,
		"reply_kind": string(ReplyGreeting),
	})
	if _, err := l.chat.PostMessage(ctx, conversationID, greeting, token); err != nil {
		if relErr := l.guard.Release(ctx, token); relErr != nil {
			l.logger.Warn("greeting guard release failed", "token", token, "error", relErr)
		}
		return fmt.Errorf("conversation: post greeting: %w", err)
	}
	l.logger.ForConversation(conversationID).Info("lead linked", "lead_id", lead.ID, "persona", p.ID)
	return nil
}

// LeadAttributes flattens a lead into conversation custom attributes.
func LeadAttributes(lead *leads.Lead, p persona.Persona) map[string]any {
	prof := lead.Profile
	attrs := map[string]any{
		AttrLeadID:        lead.ID,
		AttrLeadScore:     lead.Score.Value,
		AttrLeadCategory:  string(lead.Score.Category),
		AttrPersonaID:     p.ID,
		AttrFormSubmitted: true,
		AttrCustomerName:  prof.Name,
		AttrLoanType:      string(prof.LoanType),
		AttrPropertyPrice: prof.PropertyPrice,
		AttrPropertyType:  string(prof.PropertyType),
		AttrCitizenship:   string(prof.Citizenship),
	}
	if len(prof.MonthlyIncomes) > 0 {
		attrs[AttrMonthlyIncome] = prof.MonthlyIncomes[0]
	}
	if len(prof.MonthlyIncomes) > 1 {
		attrs[AttrCoApplicantIncome] = prof.MonthlyIncomes[1]
	}
	if len(prof.Ages) > 0 {
		attrs[AttrAge] = prof.Ages[0]
	}
	if len(prof.Ages) > 1 {
		attrs[AttrCoApplicantAge] = prof.Ages[1]
	}
	if prof.ExistingCommitments > 0 {
		attrs[AttrExistingCommitments] = prof.ExistingCommitments
	}
	if prof.PropertyCount > 0 {
		attrs[AttrPropertyCount] = prof.PropertyCount
	}
	if prof.Financing != "" {
		attrs[AttrFinancing] = string(prof.Financing)
	}
	if prof.TenureYears > 0 {
		attrs[AttrTenureYears] = prof.TenureYears
	}
	return attrs
}
