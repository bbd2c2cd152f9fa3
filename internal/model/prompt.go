package model

import "time"

// PromptScope distinguishes shared topic prompts from customer-owned ones.
// The two scopes carry different freshness windows.
type PromptScope string

const (
	ScopeShared   PromptScope = "shared"
	ScopeCustomer PromptScope = "customer"
)

// Prompt is a stored natural-language query sent to model backends.
// Created by import; only LastExecutedAt is mutated afterward. Domain
// selects the entity catalog mined from its responses; Topic is the finer
// query theme (e.g. "crm", "email marketing") used for breadth scoring.
type Prompt struct {
	ID             string           `json:"id"`
	Text           string           `json:"text"`
	Domain         ExtractionDomain `json:"domain"`
	Topic          string           `json:"topic"`
	Scope          PromptScope      `json:"scope"`
	Active         bool             `json:"active"`
	LastExecutedAt *time.Time       `json:"last_executed_at,omitempty"`
}

// Execution is one backend's raw response (or error) to one prompt at one
// point in time. Immutable once written; a failed call still produces a row
// so staleness tracking and audit remain accurate.
type Execution struct {
	ID           string    `json:"id"`
	PromptID     string    `json:"prompt_id"`
	ModelID      string    `json:"model_id"`
	ResponseText string    `json:"response_text,omitempty"`
	Error        string    `json:"error,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Succeeded reports whether the execution produced usable response text.
func (e Execution) Succeeded() bool {
	return e.Error == "" && e.ResponseText != ""
}

// Sentiment classifies the tone of a mention's context window.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Mention is a detected reference to a catalog entity within an execution's
// response text. Unique per (execution, entity); Position is the 1-based
// rank of the entity's first character offset among all matched entities.
type Mention struct {
	ExecutionID    string    `json:"execution_id"`
	EntityID       string    `json:"entity_id"`
	Position       int       `json:"position"`
	Sentiment      Sentiment `json:"sentiment"`
	ContextSnippet string    `json:"context_snippet"`
}

// SourceType is the citation taxonomy bucket for a cited domain.
type SourceType string

const (
	SourceEditorial     SourceType = "editorial"
	SourceUGC           SourceType = "ugc"
	SourceReference     SourceType = "reference"
	SourceInstitutional SourceType = "institutional"
	SourceCorporate     SourceType = "corporate"
	SourceOther         SourceType = "other"
)

// Citation is a URL referenced by or alongside an execution's response.
// Domain is derived from URL: lower-cased with any www. prefix stripped.
type Citation struct {
	ExecutionID string     `json:"execution_id"`
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	SourceType  SourceType `json:"source_type"`
}
