package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

const DefaultModel = "claude-sonnet-4-5"

// AnthropicAnalyzer asks a Claude model for the review.
type AnthropicAnalyzer struct {
	api       *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicAnalyzer creates an analyzer. An empty apiKey falls back to
// ANTHROPIC_API_KEY from the environment.
func NewAnthropicAnalyzer(apiKey, model string, opts ...option.RequestOption) *AnthropicAnalyzer {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicAnalyzer{
		api:       &client,
		model:     anthropic.Model(model),
		maxTokens: 2048,
	}
}

func (a *AnthropicAnalyzer) Name() string { return "anthropic:" + string(a.model) }

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, snap domain.Snapshot) (Analysis, error) {
	systemPrompt, userPrompt := buildPrompt(snap)

	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return Analysis{}, errors.New("no text content in API response")
	}
	return ParseAnalysis(text)
}
