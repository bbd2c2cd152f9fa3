package provider

import "context"

// Response is the uniform result contract every backend maps its own wire
// format onto.
type Response struct {
	Text         string
	Citations    []string
	InputTokens  int
	OutputTokens int
}

// Backend sends a prompt to one text-generation API and returns its answer.
// Implementations must be safe for concurrent use.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*Response, error)
}

// Outcome is one backend's call result within a fan-out: either Response or
// Err is set. A failed call is data, not a fatal condition.
type Outcome struct {
	Backend  string
	Response *Response
	Err      error
}
