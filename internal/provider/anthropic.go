package provider

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// AnthropicBackend runs prompts against the Anthropic messages API.
type AnthropicBackend struct {
	client sdk.Client
	model  string
}

// NewAnthropic creates an Anthropic backend for the given model.
func NewAnthropic(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) Generate(ctx context.Context, prompt string) (*Response, error) {
	msg, err := b.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(b.model),
		MaxTokens: 2048,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Response{
		Text:         text,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
