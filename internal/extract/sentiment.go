package extract

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/visibility-cli/internal/model"
)

// SentimentPolicy classifies the tone of a mention's context window. The
// default is a fixed indicator-word lexicon; the interface exists so the
// lexicons can be tuned or replaced without touching the extractor.
type SentimentPolicy interface {
	Classify(window string) model.Sentiment
}

// Lexicon is a word-list sentiment policy. A window containing any positive
// indicator is positive; otherwise any negative indicator makes it negative;
// otherwise it is neutral. Positive is checked first, so it wins when both
// sets co-occur.
type Lexicon struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`

	positivePatterns []*regexp.Regexp
	negativePatterns []*regexp.Regexp
}

var foldCaser = cases.Fold()

// Compile precompiles word-boundary patterns for every indicator. It must be
// called once before Classify; NewLexicon and LoadLexiconFile do so.
func (l *Lexicon) Compile() error {
	var err error
	if l.positivePatterns, err = compileIndicators(l.Positive); err != nil {
		return eris.Wrap(err, "lexicon: compile positive indicators")
	}
	if l.negativePatterns, err = compileIndicators(l.Negative); err != nil {
		return eris.Wrap(err, "lexicon: compile negative indicators")
	}
	return nil
}

func compileIndicators(words []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		p, err := regexp.Compile(`\b` + regexp.QuoteMeta(foldCaser.String(w)) + `\b`)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// NewLexicon builds a compiled lexicon from indicator word lists.
func NewLexicon(positive, negative []string) (*Lexicon, error) {
	l := &Lexicon{Positive: positive, Negative: negative}
	if err := l.Compile(); err != nil {
		return nil, err
	}
	return l, nil
}

// Classify implements SentimentPolicy.
func (l *Lexicon) Classify(window string) model.Sentiment {
	folded := foldCaser.String(window)
	for _, p := range l.positivePatterns {
		if p.MatchString(folded) {
			return model.SentimentPositive
		}
	}
	for _, p := range l.negativePatterns {
		if p.MatchString(folded) {
			return model.SentimentNegative
		}
	}
	return model.SentimentNeutral
}

// DefaultLexicon returns the built-in indicator lists for a domain.
func DefaultLexicon(domain model.ExtractionDomain) (*Lexicon, error) {
	switch domain {
	case model.DomainBrands:
		return NewLexicon(
			[]string{"best", "top", "leading", "excellent", "renowned", "recommended", "popular choice", "industry leader", "standout"},
			[]string{"worst", "poor", "declining", "overrated", "avoid", "disappointing", "outdated"},
		)
	case model.DomainUniversities:
		return NewLexicon(
			[]string{"best", "top", "leading", "excellent", "renowned", "prestigious", "world-class", "highly ranked", "recommended"},
			[]string{"worst", "poor", "declining", "overrated", "underfunded", "struggling"},
		)
	default:
		return nil, eris.Errorf("lexicon: no default lexicon for domain %q", domain)
	}
}

// LoadLexiconFile reads a lexicon override from a YAML file.
func LoadLexiconFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lexicon: read %s", path)
	}
	var l Lexicon
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrapf(err, "lexicon: parse %s", path)
	}
	if err := l.Compile(); err != nil {
		return nil, err
	}
	return &l, nil
}
