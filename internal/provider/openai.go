package provider

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

// OpenAIBackend runs prompts against the OpenAI chat completions API.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend for the given model.
func NewOpenAI(apiKey, model string) *OpenAIBackend {
	return &OpenAIBackend{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (*Response, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(b.model),
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: no choices returned")
	}

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}
