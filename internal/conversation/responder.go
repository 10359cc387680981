package conversation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/compliance"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// ReplyKind records how a reply was produced.
type ReplyKind string

const (
	ReplyGreeting       ReplyKind = "greeting"
	ReplyCalculation    ReplyKind = "calculation"
	ReplyMissingProfile ReplyKind = "missing_profile"
	ReplyHandoff        ReplyKind = "handoff"
	ReplyLLM            ReplyKind = "llm"
	ReplyTemplate       ReplyKind = "template"
	ReplyFallback       ReplyKind = "fallback"
)

// Reply is the outbound message for one inbound message.
type Reply struct {
	Content     string
	Kind        ReplyKind
	Persona     persona.Persona
	Calculation *affordability.Result
	// Provider and FellBack are set on LLM drafts only.
	Provider string
	FellBack bool
}

// LLMDrafted reports whether the content came from a model.
func (r Reply) LLMDrafted() bool { return r.Kind == ReplyLLM }

func (r Reply) origin() compliance.ReplyOrigin {
	if !r.LLMDrafted() {
		return compliance.ReplyOrigin{}
	}
	return compliance.ReplyOrigin{LLMProvider: r.Provider, LLMFallback: r.FellBack}
}

// ReplyInput is everything the responder may draw on.
type ReplyInput struct {
	Message      string
	Intent       Intent
	Persona      persona.Persona
	Attributes   map[string]any
	CustomerName string
	History      []ChatMessage
}

// ModelConfig maps Intent.SuggestedModel tiers to provider model ids.
type ModelConfig struct {
	Fast      string
	Reasoning string
}

func (m ModelConfig) forTier(tier string) string {
	if tier == ModelTierReasoning && m.Reasoning != "" {
		return m.Reasoning
	}
	return m.Fast
}

// Responder produces persona-toned replies. Every path ends in some text:
// failures degrade to the persona's templates.
type Responder struct {
	llm        LLMClient
	models     ModelConfig
	rules      affordability.Rules
	disclaimer *compliance.DisclaimerService
	logger     *logging.Logger
	printer    *message.Printer
}

// NewResponder builds a responder. llm may be nil.
func NewResponder(llm LLMClient, models ModelConfig, rules affordability.Rules, disclaimer *compliance.DisclaimerService, logger *logging.Logger) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{
		llm:        llm,
		models:     models,
		rules:      rules,
		disclaimer: disclaimer,
		logger:     logger,
		printer:    message.NewPrinter(language.English),
	}
}

// Respond picks the reply for in.
func (r *Responder) Respond(ctx context.Context, in ReplyInput) Reply {
	p := in.Persona
	switch in.Intent.Category {
	case IntentHumanHandoff:
		return Reply{Content: p.Handoff(), Kind: ReplyHandoff, Persona: p}
	case IntentGreeting:
		return Reply{Content: p.Greeting(in.CustomerName), Kind: ReplyGreeting, Persona: p}
	}

	if in.Intent.RequiresCalculation {
		profile, ok := ProfileFromAttributes(in.Attributes)
		if !ok {
			return Reply{Content: p.MissingProfile(), Kind: ReplyMissingProfile, Persona: p}
		}
		res := affordability.CalculateWithRules(profile, r.rules).Rounded()
		content := r.disclaimer.Apply(p.CalculationIntro() + "\n" + r.CalculationSummary(res))
		return Reply{Content: content, Kind: ReplyCalculation, Persona: p, Calculation: &res}
	}

	if r.llm != nil {
		resp, err := r.draft(ctx, in)
		if err == nil {
			provider := resp.Provider
			if provider == "" {
				provider = ProviderName(r.llm)
			}
			return Reply{Content: resp.Text, Kind: ReplyLLM, Persona: p, Provider: provider, FellBack: resp.FellBack}
		}
		r.logger.Warn("llm draft failed, using template", "persona", p.ID, "error", err)
	}
	return r.template(in)
}

func (r *Responder) template(in ReplyInput) Reply {
	p := in.Persona
	switch in.Intent.Category {
	case IntentRateInquiry:
		return Reply{Content: p.RateInquiry(), Kind: ReplyTemplate, Persona: p}
	case IntentDocumentQuestion:
		return Reply{Content: p.DocumentChecklist(), Kind: ReplyTemplate, Persona: p}
	}
	return Reply{Content: p.Fallback(), Kind: ReplyFallback, Persona: p}
}

const maxDraftHistory = 10

func (r *Responder) draft(ctx context.Context, in ReplyInput) (LLMResponse, error) {
	history := in.History
	if len(history) > maxDraftHistory {
		history = history[len(history)-maxDraftHistory:]
	}
	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: in.Message})

	system := []string{in.Persona.SystemPrompt()}
	if name := strings.TrimSpace(in.CustomerName); name != "" {
		system = append(system, "The customer's name is "+name+".")
	}
	resp, err := r.llm.Complete(ctx, LLMRequest{
		Model:       r.models.forTier(in.Intent.SuggestedModel),
		System:      system,
		Messages:    msgs,
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		return LLMResponse{}, err
	}
	resp.Text = strings.TrimSpace(resp.Text)
	if resp.Text == "" {
		return LLMResponse{}, fmt.Errorf("conversation: empty llm draft (stop reason %q)", resp.StopReason)
	}
	return resp, nil
}

// CalculationSummary renders the figures customers see.
func (r *Responder) CalculationSummary(res affordability.Result) string {
	var b strings.Builder
	if res.MaxLoan <= 0 {
		b.WriteString("Based on these figures a bank loan isn't available yet.")
		for _, w := range res.Warnings {
			b.WriteString("\n- " + w)
		}
		return b.String()
	}
	r.printer.Fprintf(&b, "- Maximum loan: S$%.0f (%s limit)\n", res.MaxLoan, res.LimitingFactor)
	r.printer.Fprintf(&b, "- Monthly instalment: S$%.0f over %d years\n", res.MonthlyPayment, res.TenureYears)
	r.printer.Fprintf(&b, "- Down payment: S$%.0f (at least S$%.0f in cash)\n", res.DownPayment, res.MinCashRequired)
	r.printer.Fprintf(&b, "- TDSR used: %.1f%%", res.TDSRUsed)
	if res.Ceilings.MSRApplies {
		r.printer.Fprintf(&b, ", MSR used: %.1f%%", res.MSRUsed)
	}
	if res.StampDuty.Total > 0 {
		r.printer.Fprintf(&b, "\n- Stamp duty: S$%.0f", res.StampDuty.Total)
	}
	for _, w := range res.Warnings {
		b.WriteString("\n- Note: " + w)
	}
	return b.String()
}
