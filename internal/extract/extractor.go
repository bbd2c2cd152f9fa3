package extract

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/visibility-cli/internal/model"
)

const (
	// DefaultContextRadius is the symmetric context window size in bytes
	// around a mention's first offset.
	DefaultContextRadius = 80
	// DefaultMaxSnippetLength caps the stored context snippet, in runes.
	DefaultMaxSnippetLength = 200
)

// Engine scans response text for mentions of catalog entities.
type Engine struct {
	catalog          *Catalog
	sentiment        SentimentPolicy
	contextRadius    int
	maxSnippetLength int
}

// Option configures an Engine.
type Option func(*Engine)

// WithContextRadius overrides the context window radius.
func WithContextRadius(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.contextRadius = n
		}
	}
}

// WithMaxSnippetLength overrides the stored snippet cap.
func WithMaxSnippetLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSnippetLength = n
		}
	}
}

// NewEngine creates an extraction engine over a catalog and sentiment policy.
func NewEngine(catalog *Catalog, sentiment SentimentPolicy, opts ...Option) *Engine {
	e := &Engine{
		catalog:          catalog,
		sentiment:        sentiment,
		contextRadius:    DefaultContextRadius,
		maxSnippetLength: DefaultMaxSnippetLength,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Match is one detected entity mention with its ordering and context.
type Match struct {
	Entity    model.Entity
	Offset    int
	Position  int
	Sentiment model.Sentiment
	Snippet   string
}

// Extract finds all catalog entities mentioned in text, ordered by first
// occurrence. Position is the 1-based rank by ascending first-match offset;
// offset ties are broken by catalog order, which sort stability preserves.
func (e *Engine) Extract(text string) []Match {
	if text == "" {
		return nil
	}

	var matches []Match
	for _, entry := range e.catalog.entries {
		offset := firstOffset(entry, text)
		if offset < 0 {
			continue
		}
		matches = append(matches, Match{
			Entity:    entry.entity,
			Offset:    offset,
			Sentiment: e.sentiment.Classify(e.sentimentWindow(text, offset)),
			Snippet:   e.snippet(text, offset),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Offset < matches[j].Offset
	})
	for i := range matches {
		matches[i].Position = i + 1
	}

	return matches
}

// Mentions runs Extract and shapes the result as persistable mention rows
// for the given execution.
func (e *Engine) Mentions(executionID, text string) []model.Mention {
	matches := e.Extract(text)
	if len(matches) == 0 {
		return nil
	}
	out := make([]model.Mention, len(matches))
	for i, m := range matches {
		out[i] = model.Mention{
			ExecutionID:    executionID,
			EntityID:       m.Entity.ID,
			Position:       m.Position,
			Sentiment:      m.Sentiment,
			ContextSnippet: m.Snippet,
		}
	}
	return out
}

// firstOffset returns the first character offset where the entity matches,
// or -1. The canonical name matches anywhere; aliases require word
// boundaries. The earliest offset across all patterns wins.
func firstOffset(entry catalogEntry, text string) int {
	best := -1
	if loc := entry.namePattern.FindStringIndex(text); loc != nil {
		best = loc[0]
	}
	for _, p := range entry.aliasPatterns {
		if loc := p.FindStringIndex(text); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
		}
	}
	return best
}

// clauseBoundaries terminate the sentiment window. An indicator in a
// neighboring clause describes a different subject, so it must not leak
// into this mention's classification.
const clauseBoundaries = ".,;:!?\r\n"

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// windowBounds clamps a symmetric context window around offset to the text
// bounds, aligned so multi-byte runes are never split at the edges.
func (e *Engine) windowBounds(text string, offset int) (int, int) {
	start := offset - e.contextRadius
	if start < 0 {
		start = 0
	}
	end := offset + e.contextRadius
	if end > len(text) {
		end = len(text)
	}

	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return start, end
}

// snippet extracts the full context window around offset, with newlines
// normalized to spaces and the result truncated to the configured maximum
// length.
func (e *Engine) snippet(text string, offset int) string {
	start, end := e.windowBounds(text, offset)

	window := strings.TrimSpace(newlineReplacer.Replace(text[start:end]))

	if utf8.RuneCountInString(window) > e.maxSnippetLength {
		runes := []rune(window)
		window = string(runes[:e.maxSnippetLength])
	}
	return window
}

// sentimentWindow narrows the context window to the clause containing the
// mention. The stored snippet keeps the full window; only classification is
// clause-bounded.
func (e *Engine) sentimentWindow(text string, offset int) string {
	start, end := e.windowBounds(text, offset)

	if i := strings.LastIndexAny(text[start:offset], clauseBoundaries); i >= 0 {
		start += i + 1
	}
	if i := strings.IndexAny(text[offset:end], clauseBoundaries); i >= 0 {
		end = offset + i
	}
	return strings.TrimSpace(newlineReplacer.Replace(text[start:end]))
}
