package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-haiku-4-5"
	defaultAnthropicMaxTokens = 512
)

// AnthropicLLMClient implements LLMClient with the Anthropic Messages API.
type AnthropicLLMClient struct {
	client       sdk.Client
	defaultModel string
}

// NewAnthropicLLMClient builds a client. Extra request options (base URL,
// retry count) are passed through to the SDK.
func NewAnthropicLLMClient(apiKey, defaultModel string, opts ...option.RequestOption) (*AnthropicLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: anthropic api key is required")
	}
	if strings.TrimSpace(defaultModel) == "" {
		defaultModel = defaultAnthropicModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicLLMClient{
		client:       sdk.NewClient(opts...),
		defaultModel: defaultModel,
	}, nil
}

func (c *AnthropicLLMClient) Provider() string { return "anthropic" }

func (c *AnthropicLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	system, turns, err := splitMessages(req)
	if err != nil {
		return LLMResponse{}, err
	}
	if len(turns) == 0 {
		return LLMResponse{}, errors.New("conversation: anthropic requires at least one message")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  make([]sdk.MessageParam, 0, len(turns)),
	}
	for _, msg := range turns {
		block := sdk.NewTextBlock(msg.Content)
		if msg.Role == ChatRoleAssistant {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(block))
	}
	if len(system) > 0 {
		params.System = []sdk.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if req.Temperature >= 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: anthropic completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return LLMResponse{}, errors.New("conversation: anthropic response contained no text")
	}

	in, out := int32(msg.Usage.InputTokens), int32(msg.Usage.OutputTokens)
	return LLMResponse{
		Text:       strings.TrimSpace(text.String()),
		StopReason: string(msg.StopReason),
		Provider:   c.Provider(),
		Usage:      TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}
