package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/mortgage-ai-platform/internal/config"
	"github.com/wolfman30/mortgage-ai-platform/internal/conversation"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// LLM provider names accepted in LLM_PROVIDER / LLM_FALLBACK_PROVIDER.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
)

// BuildLLMClient returns the configured LLM client, wrapped with a fallback
// provider when one is set. A nil client means templated replies only.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, opts ...conversation.FallbackOption) (conversation.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	primary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		logger.Info("no LLM provider configured; using templated replies")
		return nil, nil
	}

	fallbackName := normalizeProvider(cfg.LLMFallbackProvider)
	if fallbackName == ProviderNone || fallbackName == normalizeProvider(cfg.LLMProvider) {
		logger.Info("llm provider configured", "provider", normalizeProvider(cfg.LLMProvider))
		return primary, nil
	}
	fallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("fallback llm provider unavailable", "provider", fallbackName, "error", err)
		return primary, nil
	}
	logger.Info("llm provider configured", "provider", normalizeProvider(cfg.LLMProvider), "fallback", fallbackName)
	return conversation.NewFallbackLLMClient(primary, fallback, logger, opts...), nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config) (conversation.LLMClient, error) {
	switch normalizeProvider(name) {
	case ProviderNone:
		return nil, nil
	case ProviderAnthropic:
		var opts []option.RequestOption
		if cfg.LLMTimeout > 0 {
			opts = append(opts, option.WithRequestTimeout(cfg.LLMTimeout))
		}
		client, err := conversation.NewAnthropicLLMClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: anthropic: %w", err)
		}
		return client, nil
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, fmt.Errorf("bootstrap: bedrock: BEDROCK_MODEL_ID is required")
		}
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
	case ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}

func normalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderNone
	}
	return name
}
