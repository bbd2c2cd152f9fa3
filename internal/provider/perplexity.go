package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/pkg/perplexity"
)

// PerplexityBackend runs prompts against the Perplexity API. Perplexity
// answers come with structured citation URLs, which are carried through so
// the citation classifier does not have to parse them out of the text.
type PerplexityBackend struct {
	client perplexity.Client
}

// NewPerplexity creates a Perplexity backend from an existing client.
func NewPerplexity(client perplexity.Client) *PerplexityBackend {
	return &PerplexityBackend{client: client}
}

func (b *PerplexityBackend) Name() string { return "perplexity" }

func (b *PerplexityBackend) Generate(ctx context.Context, prompt string) (*Response, error) {
	resp, err := b.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("perplexity: no choices returned")
	}

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Citations:    resp.Citations,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
