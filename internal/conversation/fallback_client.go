package conversation

import (
	"context"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// LLM request outcomes reported to an LLMObserver.
const (
	LLMOutcomeOK       = "ok"
	LLMOutcomeError    = "error"
	LLMOutcomeFallback = "fallback"
)

// LLMObserver counts provider calls made through a FallbackLLMClient.
type LLMObserver interface {
	ObserveLLMRequest(provider, outcome string)
}

// ProviderName returns the provider label of c, or "unknown".
func ProviderName(c LLMClient) string {
	if named, ok := c.(interface{ Provider() string }); ok {
		if name := named.Provider(); name != "" {
			return name
		}
	}
	return "unknown"
}

// FallbackOption configures a FallbackLLMClient.
type FallbackOption func(*FallbackLLMClient)

// WithLLMObserver reports every provider call to obs.
func WithLLMObserver(obs LLMObserver) FallbackOption {
	return func(c *FallbackLLMClient) { c.observer = obs }
}

// FallbackLLMClient sends drafts to a secondary provider when the primary
// errors. Responses carry the name of the provider that answered and whether
// the secondary was used, so replies can be audited per provider.
type FallbackLLMClient struct {
	primary       LLMClient
	secondary     LLMClient
	primaryName   string
	secondaryName string
	observer      LLMObserver
	logger        *logging.Logger
}

// NewFallbackLLMClient panics on a nil primary. A nil secondary is allowed.
func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger, opts ...FallbackOption) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &FallbackLLMClient{
		primary:     primary,
		secondary:   secondary,
		primaryName: ProviderName(primary),
		logger:      logger,
	}
	if secondary != nil {
		c.secondaryName = ProviderName(secondary)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider names the primary.
func (c *FallbackLLMClient) Provider() string { return c.primaryName }

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, primaryErr := c.primary.Complete(ctx, req)
	if primaryErr == nil {
		c.observe(c.primaryName, LLMOutcomeOK)
		return stampProvider(resp, c.primaryName, false), nil
	}
	c.observe(c.primaryName, LLMOutcomeError)

	if c.secondary == nil || ctx.Err() != nil {
		c.logger.Warn("llm draft failed", "provider", c.primaryName, "error", primaryErr)
		return LLMResponse{}, primaryErr
	}
	c.logger.Warn("llm draft failed, trying secondary provider",
		"provider", c.primaryName,
		"secondary", c.secondaryName,
		"error", primaryErr,
	)

	resp, err := c.secondary.Complete(ctx, req)
	if err != nil {
		c.observe(c.secondaryName, LLMOutcomeError)
		c.logger.Error("secondary llm provider also failed",
			"provider", c.secondaryName,
			"primary_error", primaryErr,
			"error", err,
		)
		return LLMResponse{}, err
	}
	c.observe(c.secondaryName, LLMOutcomeFallback)
	return stampProvider(resp, c.secondaryName, true), nil
}

func (c *FallbackLLMClient) observe(provider, outcome string) {
	if c.observer != nil {
		c.observer.ObserveLLMRequest(provider, outcome)
	}
}

func stampProvider(resp LLMResponse, name string, fellBack bool) LLMResponse {
	if resp.Provider == "" {
		resp.Provider = name
	}
	resp.FellBack = fellBack
	return resp
}
