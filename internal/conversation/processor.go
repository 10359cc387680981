package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/mortgage-ai-platform/internal/analytics"
	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/internal/compliance"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("mortgage.internal.conversation")

// ChatwootAPI is the subset of chatwoot.Client the processor calls.
type ChatwootAPI interface {
	PostMessage(ctx context.Context, conversationID int64, msg chatwoot.OutgoingMessage, idempotencyKey string) (*chatwoot.MessageResponse, error)
	UpdateCustomAttributes(ctx context.Context, conversationID int64, attrs map[string]any) error
	ToggleTyping(ctx context.Context, conversationID int64, on bool) error
	UpdateStatus(ctx context.Context, conversationID int64, status string) error
}

// EventRecorder receives conversion events.
type EventRecorder interface {
	Record(ctx context.Context, evt analytics.ConversionEvent) error
}

// Outcome labels for handled webhook events.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Processor applies one Chatwoot webhook event: state transitions, reply
// generation and the outbound post. Outbound failures are logged, never
// returned; only state-store failures surface as errors.
type Processor struct {
	tracker    *Tracker
	classifier *IntentClassifier
	responder  *Responder
	selector   *persona.Selector
	chat       ChatwootAPI
	guard      *ReplyGuard
	events     EventRecorder
	audit      *compliance.AuditService
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger
}

// ProcessorOption configures optional collaborators.
type ProcessorOption func(*Processor)

func WithReplyGuard(g *ReplyGuard) ProcessorOption {
	return func(p *Processor) { p.guard = g }
}

func WithEventRecorder(r EventRecorder) ProcessorOption {
	return func(p *Processor) { p.events = r }
}

func WithAudit(a *compliance.AuditService) ProcessorOption {
	return func(p *Processor) { p.audit = a }
}

func WithMetrics(m *metrics.ChatMetrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor wires a processor.
func NewProcessor(tracker *Tracker, classifier *IntentClassifier, responder *Responder, selector *persona.Selector, chat ChatwootAPI, logger *logging.Logger, opts ...ProcessorOption) *Processor {
	if tracker == nil || responder == nil || chat == nil {
		panic("conversation: processor requires tracker, responder and chat client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if classifier == nil {
		classifier = NewIntentClassifier(nil, "", logger, nil)
	}
	if selector == nil {
		selector = persona.NewSelector(0)
	}
	p := &Processor{
		tracker:    tracker,
		classifier: classifier,
		responder:  responder,
		selector:   selector,
		chat:       chat,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle routes ev by type. Unhandled types are ignored.
func (p *Processor) Handle(ctx context.Context, ev *chatwoot.Event) error {
	if ev == nil {
		return nil
	}
	ctx, span := tracer.Start(ctx, "conversation.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("chatwoot.event", string(ev.Type)),
		attribute.Int64("chatwoot.conversation_id", ev.ConversationID()),
	)

	started := time.Now()
	var (
		outcome string
		err     error
	)
	switch ev.Type {
	case chatwoot.EventConversationCreated:
		outcome, err = p.handleConversationCreated(ctx, ev)
	case chatwoot.EventMessageCreated:
		outcome, err = p.handleMessageCreated(ctx, ev)
	case chatwoot.EventConversationStatusChanged:
		outcome, err = p.handleStatusChanged(ctx, ev)
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		outcome = OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "event handling failed")
	}
	span.SetAttributes(attribute.String("conversation.outcome", outcome))
	p.metrics.ObserveInbound(string(ev.Type), outcome)
	p.metrics.ObserveWebhookLatency(string(ev.Type), time.Since(started).Seconds())
	return err
}

func (p *Processor) handleConversationCreated(ctx context.Context, ev *chatwoot.Event) (string, error) {
	convID := ev.ConversationID()
	obs, err := p.tracker.Observe(ctx, convID, 0)
	if err != nil {
		return "", err
	}
	if obs.Fresh {
		p.record(ctx, analytics.EventChatStarted, convID, nil, nil)
	}
	if _, _, err := p.ensurePersona(ctx, ev, obs.State); err != nil {
		return "", err
	}
	return OutcomeProcessed, nil
}

func (p *Processor) handleStatusChanged(ctx context.Context, ev *chatwoot.Event) (string, error) {
	convID := ev.ConversationID()
	if ev.Conversation.Status != chatwoot.StatusResolved {
		if _, err := p.tracker.Observe(ctx, convID, 0); err != nil {
			return "", err
		}
		return OutcomeProcessed, nil
	}

	if err := p.tracker.Resolve(ctx, convID); err != nil {
		return "", err
	}
	if err := p.audit.LogConversationResolved(ctx, strconv.FormatInt(convID, 10)); err != nil {
		p.logger.Warn("resolve audit failed", "conversation_id", convID, "error", err)
	}
	p.record(ctx, analytics.EventConversationResolved, convID, nil, nil)
	p.logger.ForConversation(convID).Info("conversation resolved")
	return OutcomeProcessed, nil
}

func (p *Processor) handleMessageCreated(ctx context.Context, ev *chatwoot.Event) (string, error) {
	convID := ev.ConversationID()
	log := p.logger.ForConversation(convID)

	kind := chatwoot.Classify(ev.Message)
	p.metrics.ObserveMessageKind(string(kind))
	if !kind.Routable() {
		log.Debug("message ignored", "kind", kind)
		return OutcomeIgnored, nil
	}
	msg := ev.Message

	// The watermark only moves once the reply is claimed, so a delivery that
	// fails before that point is handled again on redelivery.
	obs, err := p.tracker.Observe(ctx, convID, 0)
	if err != nil {
		return "", err
	}
	if obs.State.IsDuplicate(msg.ID) {
		log.Info("duplicate message delivery skipped", "message_id", msg.ID, "last_message_id", obs.State.LastMessageID)
		return OutcomeDuplicate, nil
	}
	if obs.Fresh {
		p.record(ctx, analytics.EventChatStarted, convID, nil, nil)
	}

	token := ReplyToken(convID, msg.ID)
	claimed, err := p.guard.Claim(ctx, token)
	if err != nil {
		// Without the guard we cannot rule out a double post; skip.
		log.Error("reply guard unavailable", "token", token, "error", err)
		return OutcomeFailed, nil
	}
	if !claimed {
		log.Info("reply already sent", "token", token)
		return OutcomeDuplicate, nil
	}
	release := func() {
		if relErr := p.guard.Release(ctx, token); relErr != nil {
			log.Warn("reply guard release failed", "token", token, "error", relErr)
		}
	}

	bot, state, err := p.ensurePersona(ctx, ev, obs.State)
	if err != nil {
		release()
		return "", err
	}

	advanced, err := p.tracker.Advance(ctx, convID, msg.ID)
	if err != nil {
		release()
		return "", err
	}
	if !advanced {
		log.Info("message superseded by a newer delivery", "message_id", msg.ID)
		return OutcomeDuplicate, nil
	}

	attrs := ev.Conversation.CustomAttributes
	_, hasProfile := ProfileFromAttributes(attrs)
	intent := p.classifier.Classify(ctx, msg.Content, ConversationContext{
		PersonaID:     bot.ID,
		LeadScore:     state.LeadScore,
		HasProfile:    hasProfile,
		FormSubmitted: state.FormSubmitted || attrBool(attrs, AttrFormSubmitted),
	})
	score := state.LeadScore
	p.record(ctx, analytics.EventMessageReceived, convID, &score, map[string]any{
		"intent":        string(intent.Category),
		"intent_source": intent.Source,
	})

	p.setTyping(ctx, convID, true)
	reply := p.responder.Respond(ctx, ReplyInput{
		Message:      msg.Content,
		Intent:       intent,
		Persona:      bot,
		Attributes:   attrs,
		CustomerName: customerName(ev),
	})
	p.setTyping(ctx, convID, false)

	if err := p.post(ctx, convID, reply, token); err != nil {
		release()
		log.Error("reply post failed", "message_id", msg.ID, "reply_kind", reply.Kind, "error", err)
		return OutcomeFailed, nil
	}

	p.afterReply(ctx, convID, score, intent, reply)
	log.Info("reply sent", "message_id", msg.ID, "intent", intent.Category, "reply_kind", reply.Kind, "persona", bot.ID)
	return OutcomeProcessed, nil
}

func (p *Processor) post(ctx context.Context, convID int64, reply Reply, token string) error {
	out := chatwoot.BotMessage(reply.Content, map[string]any{
		"persona_id": reply.Persona.ID,
		"reply_kind": string(reply.Kind),
	})
	_, err := p.chat.PostMessage(ctx, convID, out, token)
	p.metrics.ObserveOutbound("post_message", err)
	return err
}

func (p *Processor) afterReply(ctx context.Context, convID int64, score int, intent Intent, reply Reply) {
	id := strconv.FormatInt(convID, 10)
	if err := p.audit.LogReplyPosted(ctx, id, reply.Persona.ID, reply.Content, reply.origin()); err != nil {
		p.logger.Warn("reply audit failed", "conversation_id", convID, "error", err)
	}
	p.record(ctx, analytics.EventReplySent, convID, &score, map[string]any{
		"reply_kind": string(reply.Kind),
		"persona":    reply.Persona.ID,
	})

	switch {
	case reply.Calculation != nil:
		calc := reply.Calculation
		p.metrics.ObserveCalculation(string(calc.LimitingFactor), calc.MASCompliant)
		if err := p.audit.LogCalculationSent(ctx, id, calc.MaxLoan, string(calc.LimitingFactor), calc.MASCompliant); err != nil {
			p.logger.Warn("calculation audit failed", "conversation_id", convID, "error", err)
		}
		p.record(ctx, analytics.EventCalculationDelivered, convID, &score, map[string]any{
			"max_loan":        calc.MaxLoan,
			"limiting_factor": string(calc.LimitingFactor),
		})
	case intent.Category == IntentHumanHandoff:
		p.record(ctx, analytics.EventHandoffRequested, convID, &score, nil)
		p.updateAttributes(ctx, convID, map[string]any{"handoff_requested": true})
		// Pending takes the conversation out of the bot's open queue until a
		// broker picks it up.
		err := p.chat.UpdateStatus(ctx, convID, chatwoot.StatusPending)
		p.metrics.ObserveOutbound("update_status", err)
		if err != nil {
			p.logger.Warn("handoff status update failed", "conversation_id", convID, "error", err)
		}
	}
}

// ensurePersona assigns a broker persona the first time a conversation is
// seen. The lead form may already have chosen one (persona_id attribute).
func (p *Processor) ensurePersona(ctx context.Context, ev *chatwoot.Event, st State) (persona.Persona, State, error) {
	if st.BrokerAssigned {
		if bot, ok := persona.Lookup(st.PersonaID); ok {
			return bot, st, nil
		}
	}

	attrs := ev.Conversation.CustomAttributes
	score, _ := attrInt(attrs, AttrLeadScore)
	bot, ok := persona.Lookup(attrString(attrs, AttrPersonaID))
	if !ok {
		bot = p.selector.Select(score, persona.Context{LoanType: attrString(attrs, AttrLoanType)})
	}
	category := attrString(attrs, AttrLeadCategory)
	if category == "" {
		category = string(leads.Categorize(score))
	}

	next, err := p.tracker.MarkAssigned(ctx, ev.ConversationID(), Assignment{
		PersonaID:    bot.ID,
		LeadID:       attrString(attrs, AttrLeadID),
		LeadScore:    score,
		LeadCategory: category,
	})
	if err != nil {
		return persona.Persona{}, st, err
	}
	p.record(ctx, analytics.EventBrokerAssigned, ev.ConversationID(), &score, map[string]any{
		"persona":      bot.ID,
		"persona_type": string(bot.Type),
	})
	if attrString(attrs, AttrPersonaID) != bot.ID {
		p.updateAttributes(ctx, ev.ConversationID(), map[string]any{AttrPersonaID: bot.ID})
	}
	return bot, *next, nil
}

func (p *Processor) setTyping(ctx context.Context, convID int64, on bool) {
	if _, err := p.tracker.SetTyping(ctx, convID, on); err != nil {
		p.logger.Debug("typing state update failed", "conversation_id", convID, "error", err)
	}
	err := p.chat.ToggleTyping(ctx, convID, on)
	p.metrics.ObserveOutbound("toggle_typing", err)
	if err != nil {
		p.logger.Debug("typing indicator failed", "conversation_id", convID, "error", err)
	}
}

func (p *Processor) updateAttributes(ctx context.Context, convID int64, attrs map[string]any) {
	err := p.chat.UpdateCustomAttributes(ctx, convID, attrs)
	p.metrics.ObserveOutbound("custom_attributes", err)
	if err != nil {
		p.logger.Warn("custom attribute update failed", "conversation_id", convID, "error", err)
	}
}

func (p *Processor) record(ctx context.Context, name analytics.EventName, convID int64, score *int, props map[string]any) {
	if p.events == nil {
		return
	}
	err := p.events.Record(ctx, analytics.ConversionEvent{
		Name:       name,
		SessionID:  strconv.FormatInt(convID, 10),
		LeadScore:  score,
		Properties: props,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("analytics event failed", "event", name, "conversation_id", convID, "error", err)
	}
}

func customerName(ev *chatwoot.Event) string {
	if name := attrString(ev.Conversation.CustomAttributes, AttrCustomerName); name != "" {
		return firstName(name)
	}
	if c := ev.Contact(); c != nil {
		return firstName(c.Name)
	}
	return ""
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
