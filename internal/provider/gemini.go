package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/pkg/gemini"
)

// GeminiBackend runs prompts against the Google Generative Language API.
type GeminiBackend struct {
	client gemini.Client
}

// NewGemini creates a Gemini backend from an existing client.
func NewGemini(client gemini.Client) *GeminiBackend {
	return &GeminiBackend{client: client}
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (*Response, error) {
	resp, err := b.client.GenerateContent(ctx, gemini.GenerateContentRequest{
		Contents: []gemini.Content{
			{Role: "user", Parts: []gemini.Part{{Text: prompt}}},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	text := resp.Text()
	if text == "" {
		return nil, eris.New("gemini: empty response")
	}

	return &Response{
		Text:         text,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}
