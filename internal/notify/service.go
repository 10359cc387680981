package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Service fans broker alerts out to the configured recipients.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
	printer    *message.Printer
}

// NewService builds an alert service. With no recipients every notify call
// is a no-op.
func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewLogSender(logger)
	}
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Service{email: email, recipients: cleaned, logger: logger, printer: message.NewPrinter(language.English)}
}

var _ leads.Notifier = (*Service)(nil)

// NotifyPremiumLead tells brokers a premium lead is waiting. The email holds
// the figures brokers triage on, never contact details.
func (s *Service) NotifyPremiumLead(ctx context.Context, lead *leads.Lead, p persona.Persona, calc affordability.Result) error {
	if lead == nil {
		return errors.New("notify: nil lead")
	}
	subject := fmt.Sprintf("Premium lead %s (score %d)", shortID(lead.ID), lead.Score.Value)

	var b strings.Builder
	s.printer.Fprintf(&b, "A premium lead was assigned to %s.\n\n", p.Name)
	s.printer.Fprintf(&b, "Lead: %s (snapshot v%d)\n", lead.ID, lead.SnapshotVersion)
	s.printer.Fprintf(&b, "Score: %d (%s)\n", lead.Score.Value, lead.Score.Category)
	s.printer.Fprintf(&b, "Loan type: %s\n", lead.Profile.LoanType)
	s.printer.Fprintf(&b, "Property: %s at S$%.0f\n", lead.Profile.PropertyType, lead.Profile.PropertyPrice)
	if calc.MaxLoan > 0 {
		s.printer.Fprintf(&b, "Max loan: S$%.0f (%s limit), S$%.0f/month\n", calc.MaxLoan, calc.LimitingFactor, calc.MonthlyPayment)
	}
	if lead.Profile.Urgent {
		b.WriteString("Flagged urgent by the applicant.\n")
	}
	return s.broadcast(ctx, subject, b.String())
}

// NotifyHealthChange reports a health status transition.
func (s *Service) NotifyHealthChange(ctx context.Context, previous, current string, failing []string) error {
	subject := fmt.Sprintf("Service health %s (was %s)", current, previous)
	body := fmt.Sprintf("Health moved from %s to %s.\n", previous, current)
	if len(failing) > 0 {
		body += "Failing checks: " + strings.Join(failing, ", ") + "\n"
	}
	return s.broadcast(ctx, subject, body)
}

func (s *Service) broadcast(ctx context.Context, subject, body string) error {
	if len(s.recipients) == 0 {
		s.logger.Debug("no alert recipients configured", "subject", subject)
		return nil
	}
	var errs []error
	for _, to := range s.recipients {
		if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d alert(s) failed: %w", len(errs), len(s.recipients), errors.Join(errs...))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
