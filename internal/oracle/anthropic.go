package oracle

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicOracle answers prompts with the Anthropic Messages API.
type AnthropicOracle struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicOracle creates an AnthropicOracle. Empty model and zero
// maxTokens fall back to defaults.
func NewAnthropicOracle(apiKey, model string, maxTokens int64, temperature float64) *AnthropicOracle {
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &AnthropicOracle{
		client:      sdk.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Infer sends the prompt as a single user message and concatenates the text
// blocks of the answer.
func (o *AnthropicOracle) Infer(ctx context.Context, prompt string) (string, error) {
	msg, err := o.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(o.model),
		MaxTokens:   o.maxTokens,
		Temperature: sdk.Float(o.temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "oracle: anthropic create message")
	}

	zap.L().Info("oracle inference",
		zap.String("model", o.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
