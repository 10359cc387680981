package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// IntentCategory labels an inbound chat message for routing.
type IntentCategory string

const (
	IntentCalculationRequest IntentCategory = "calculation_request"
	IntentRateInquiry        IntentCategory = "rate_inquiry"
	IntentDocumentQuestion   IntentCategory = "document_question"
	IntentHumanHandoff       IntentCategory = "human_handoff"
	IntentGreeting           IntentCategory = "greeting"
	IntentGeneralQuestion    IntentCategory = "general_question"
)

var knownIntents = map[IntentCategory]struct{}{
	IntentCalculationRequest: {},
	IntentRateInquiry:        {},
	IntentDocumentQuestion:   {},
	IntentHumanHandoff:       {},
	IntentGreeting:           {},
	IntentGeneralQuestion:    {},
}

// Model tiers a caller may use for the reply.
const (
	ModelTierFast      = "fast"
	ModelTierReasoning = "reasoning"
)

// Classification sources.
const (
	IntentSourceHeuristic = "heuristic"
	IntentSourceLLM       = "llm"
)

// Intent is the classifier verdict for one message.
type Intent struct {
	Category            IntentCategory `json:"category"`
	Confidence          float64        `json:"confidence"`
	RequiresCalculation bool           `json:"requiresCalculation"`
	SuggestedModel      string         `json:"suggestedModel"`
	Source              string         `json:"source"`
}

// ConversationContext is what the classifier knows about the conversation.
type ConversationContext struct {
	PersonaID     string
	LeadScore     int
	HasProfile    bool
	FormSubmitted bool
	History       []ChatMessage
}

var (
	calculationPattern = regexp.MustCompile(`(?i)\b(how much|afford|tdsr|msr|ltv|calculat\w*|max(imum)? loan|monthly (payment|repayment|install?ment)s?|borrow\w*|loan (amount|quantum|eligibility))\b`)
	handoffPattern     = regexp.MustCompile(`(?i)\b(speak|talk|chat) (to|with) (a |an |the )?(human|person|agent|broker|someone|banker)\b|\b(real person|call me|human agent)\b`)
	ratePattern        = regexp.MustCompile(`(?i)\b(interest rates?|rates?|sora|fixed|floating|package|repricing|lock[- ]in)\b`)
	documentPattern    = regexp.MustCompile(`(?i)\b(documents?|payslips?|notice of assessment|noa|cpf statement|ipa|in[- ]principle|approval letter|paperwork|valuation)\b`)
	greetingPattern    = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|hiya|good (morning|afternoon|evening))\b[\s!.,]*(there)?[\s!.,]*$`)
)

// HeuristicIntent classifies with keyword rules. Calculation-shaped
// questions always win over softer categories except an explicit request
// for a human.
func HeuristicIntent(message string) Intent {
	msg := strings.TrimSpace(message)
	switch {
	case msg == "":
		return newIntent(IntentGeneralQuestion, 0.2, IntentSourceHeuristic)
	case handoffPattern.MatchString(msg):
		return newIntent(IntentHumanHandoff, 0.8, IntentSourceHeuristic)
	case calculationPattern.MatchString(msg):
		return newIntent(IntentCalculationRequest, 0.75, IntentSourceHeuristic)
	case ratePattern.MatchString(msg):
		return newIntent(IntentRateInquiry, 0.65, IntentSourceHeuristic)
	case documentPattern.MatchString(msg):
		return newIntent(IntentDocumentQuestion, 0.65, IntentSourceHeuristic)
	case greetingPattern.MatchString(msg):
		return newIntent(IntentGreeting, 0.8, IntentSourceHeuristic)
	default:
		return newIntent(IntentGeneralQuestion, 0.4, IntentSourceHeuristic)
	}
}

func newIntent(category IntentCategory, confidence float64, source string) Intent {
	return Intent{
		Category:            category,
		Confidence:          confidence,
		RequiresCalculation: category == IntentCalculationRequest,
		SuggestedModel:      suggestedModel(category),
		Source:              source,
	}
}

func suggestedModel(category IntentCategory) string {
	switch category {
	case IntentCalculationRequest, IntentDocumentQuestion:
		return ModelTierReasoning
	default:
		return ModelTierFast
	}
}

const intentClassifierPrompt = `Classify the customer's latest message to a Singapore mortgage broker into ONE category. Respond with JSON only.

Categories:
- calculation_request: wants to know how much they can borrow or afford, monthly instalments, TDSR/MSR/LTV limits
- rate_inquiry: asks about interest rates, SORA, fixed or floating packages, repricing
- document_question: asks which documents are needed or about the application paperwork
- human_handoff: asks to speak with a person or broker
- greeting: a greeting with no question
- general_question: anything else

Context: lead score %d, profile on file: %t.

Message: %s

Respond with: {"category": "<category>", "confidence": <0..1>}`

// IntentObserver receives one callback per classification.
type IntentObserver interface {
	ObserveIntent(category, source string)
}

// IntentClassifier asks an LLM when one is configured and falls back to
// HeuristicIntent on any failure.
type IntentClassifier struct {
	client   LLMClient
	model    string
	logger   *logging.Logger
	observer IntentObserver
}

// NewIntentClassifier builds a classifier. A nil client means heuristic only.
func NewIntentClassifier(client LLMClient, model string, logger *logging.Logger, observer IntentObserver) *IntentClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentClassifier{client: client, model: model, logger: logger, observer: observer}
}

// Classify labels message. It never returns an error.
func (c *IntentClassifier) Classify(ctx context.Context, message string, cc ConversationContext) Intent {
	intent := c.classify(ctx, message, cc)
	if c.observer != nil {
		c.observer.ObserveIntent(string(intent.Category), intent.Source)
	}
	return intent
}

func (c *IntentClassifier) classify(ctx context.Context, message string, cc ConversationContext) Intent {
	heuristic := HeuristicIntent(message)
	if c == nil || c.client == nil || strings.TrimSpace(message) == "" {
		return heuristic
	}

	intent, err := c.classifyLLM(ctx, message, cc)
	if err != nil {
		c.logger.Warn("intent classification fell back to heuristic", "error", err)
		return heuristic
	}
	// Never let the model demote a calculation-shaped question to a
	// generic answer.
	if heuristic.RequiresCalculation && !intent.RequiresCalculation && intent.Category != IntentHumanHandoff {
		return heuristic
	}
	return intent
}

func (c *IntentClassifier) classifyLLM(ctx context.Context, message string, cc ConversationContext) (Intent, error) {
	prompt := fmt.Sprintf(intentClassifierPrompt, cc.LeadScore, cc.HasProfile, strings.TrimSpace(message))
	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:       c.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   60,
		Temperature: 0,
	})
	if err != nil {
		return Intent{}, err
	}

	var result struct {
		Category   string   `json:"category"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Text)), &result); err != nil {
		return Intent{}, fmt.Errorf("conversation: unparsable intent %q: %w", resp.Text, err)
	}
	category := IntentCategory(strings.ToLower(strings.TrimSpace(result.Category)))
	if _, ok := knownIntents[category]; !ok {
		return Intent{}, fmt.Errorf("conversation: unknown intent %q", result.Category)
	}

	confidence := 0.7
	if result.Confidence != nil && *result.Confidence >= 0 && *result.Confidence <= 1 {
		confidence = *result.Confidence
	}
	return newIntent(category, confidence, IntentSourceLLM), nil
}

// extractJSONObject trims prose an LLM may put around a JSON object.
func extractJSONObject(text string) string {
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
