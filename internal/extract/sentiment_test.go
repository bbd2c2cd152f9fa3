package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
)

func TestLexiconClassify(t *testing.T) {
	lex, err := DefaultLexicon(model.DomainBrands)
	require.NoError(t, err)

	tests := []struct {
		name   string
		window string
		want   model.Sentiment
	}{
		{"positive indicator", "Acme Corp is the best choice for teams", model.SentimentPositive},
		{"negative indicator", "most reviewers say to avoid Acme Corp", model.SentimentNegative},
		{"no indicators", "Acme Corp was founded in 2003", model.SentimentNeutral},
		{"positive wins over negative", "the best option, though some call it overrated", model.SentimentPositive},
		{"case insensitive", "ACME is the BEST", model.SentimentPositive},
		{"word boundary", "the bestest tool around", model.SentimentNeutral},
		{"multi-word indicator", "Acme is a popular choice among startups", model.SentimentPositive},
		{"empty window", "", model.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lex.Classify(tt.window))
		})
	}
}

func TestDefaultLexiconPerDomain(t *testing.T) {
	brands, err := DefaultLexicon(model.DomainBrands)
	require.NoError(t, err)
	unis, err := DefaultLexicon(model.DomainUniversities)
	require.NoError(t, err)

	// "prestigious" is a university indicator, not a brand one.
	assert.Equal(t, model.SentimentNeutral, brands.Classify("a prestigious option"))
	assert.Equal(t, model.SentimentPositive, unis.Classify("a prestigious option"))

	_, err = DefaultLexicon(model.ExtractionDomain("unknown"))
	require.Error(t, err)
}

func TestLoadLexiconFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	content := `positive: [stellar]
negative: [dreadful]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lex, err := LoadLexiconFile(path)
	require.NoError(t, err)
	assert.Equal(t, model.SentimentPositive, lex.Classify("a stellar record"))
	assert.Equal(t, model.SentimentNegative, lex.Classify("a dreadful record"))
	assert.Equal(t, model.SentimentNeutral, lex.Classify("the best record"))

	_, err = LoadLexiconFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
