package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func premiumLead() *leads.Lead {
	return &leads.Lead{
		ID:              "6f1c2a9e-3b0d-4c8e-9d55-1a2b3c4d5e6f",
		SnapshotVersion: 2,
		Profile: leads.ApplicantProfile{
			Name:          "Daniel Koh",
			Email:         "daniel@example.com",
			Phone:         "+6591234567",
			LoanType:      leads.LoanNewPurchase,
			PropertyType:  affordability.PropertyPrivate,
			PropertyPrice: 1_850_000,
			Urgent:        true,
		},
		Score: leads.Score{Value: 88, Category: leads.CategoryPremium},
	}
}

func TestNotifyPremiumLead(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"desk@example.sg", " ", "lead@example.sg"}, logging.Discard())
	p, ok := persona.Lookup(persona.MichelleChen)
	require.True(t, ok)

	calc := affordability.Result{MaxLoan: 1_387_500, MonthlyPayment: 6_624, LimitingFactor: affordability.LimitLTV}
	require.NoError(t, svc.NotifyPremiumLead(context.Background(), premiumLead(), p, calc))

	require.Len(t, sender.sent, 2)
	msg := sender.sent[0]
	assert.Equal(t, "desk@example.sg", msg.To)
	assert.Equal(t, "Premium lead 6f1c2a9e (score 88)", msg.Subject)
	assert.Contains(t, msg.Body, "S$1,850,000")
	assert.Contains(t, msg.Body, "S$1,387,500 (LTV limit)")
	assert.Contains(t, msg.Body, "urgent")
	assert.NotContains(t, msg.Body, "daniel@example.com", "contact details stay out of alerts")
	assert.NotContains(t, msg.Body, "+6591234567")

	require.Error(t, svc.NotifyPremiumLead(context.Background(), nil, p, calc))
}

func TestNotifyHealthChange(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"ops@example.sg"}, logging.Discard())

	require.NoError(t, svc.NotifyHealthChange(context.Background(), "healthy", "unhealthy", []string{"database", "chatwoot"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Service health unhealthy (was healthy)", sender.sent[0].Subject)
	assert.True(t, strings.Contains(sender.sent[0].Body, "database, chatwoot"))
}

func TestNotifyWithoutRecipientsIsNoop(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil, logging.Discard())
	require.NoError(t, svc.NotifyHealthChange(context.Background(), "healthy", "degraded", nil))
	assert.Empty(t, sender.sent)
}

func TestNotifyAggregatesFailures(t *testing.T) {
	boom := errors.New("smtp down")
	svc := NewService(&recordingSender{err: boom}, []string{"a@example.sg", "b@example.sg"}, logging.Discard())

	err := svc.NotifyHealthChange(context.Background(), "healthy", "unhealthy", nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "2 of 2")
}
