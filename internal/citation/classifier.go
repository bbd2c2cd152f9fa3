package citation

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Policy assigns a source type to a normalized citation domain. The default
// taxonomy combines TLD rules, curated domain lists, and a keyword heuristic;
// the interface exists so deployments can swap in their own classification.
type Policy interface {
	Classify(domain string) model.SourceType
}

// Classifier normalizes cited URLs and tags them with a source type.
type Classifier struct {
	policy Policy
}

// NewClassifier creates a Classifier. A nil policy falls back to the default
// taxonomy.
func NewClassifier(policy Policy) *Classifier {
	if policy == nil {
		policy = DefaultTaxonomy()
	}
	return &Classifier{policy: policy}
}

// Classify parses a raw cited URL into a persistable citation row for the
// given execution. URLs that cannot be parsed or carry no host are rejected.
func (c *Classifier) Classify(executionID, rawURL string) (model.Citation, error) {
	domain, err := NormalizeDomain(rawURL)
	if err != nil {
		return model.Citation{}, err
	}
	return model.Citation{
		ExecutionID: executionID,
		URL:         rawURL,
		Domain:      domain,
		SourceType:  c.policy.Classify(domain),
	}, nil
}

// ClassifyAll classifies every URL, silently dropping unparseable ones.
func (c *Classifier) ClassifyAll(executionID string, rawURLs []string) []model.Citation {
	out := make([]model.Citation, 0, len(rawURLs))
	for _, raw := range rawURLs {
		ct, err := c.Classify(executionID, raw)
		if err != nil {
			continue
		}
		out = append(out, ct)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeDomain extracts the lowercased host from a URL, stripping any
// leading "www." prefix and port.
func NormalizeDomain(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", eris.New("citation: empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "citation: parse url %q", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", eris.Errorf("citation: url %q has no host", rawURL)
	}
	host = strings.TrimPrefix(host, "www.")
	return host, nil
}

// Taxonomy is the default source-type policy. Classification order:
// institutional TLDs first, then the curated per-type domain lists, then a
// keyword heuristic for commercial TLDs, then other.
type Taxonomy struct {
	editorial     map[string]struct{}
	ugc           map[string]struct{}
	reference     map[string]struct{}
	institutional map[string]struct{}
}

var (
	editorialDomains = []string{
		"techcrunch.com", "theverge.com", "wired.com", "forbes.com",
		"businessinsider.com", "bloomberg.com", "reuters.com", "nytimes.com",
		"theguardian.com", "bbc.com", "cnn.com", "zdnet.com", "cnet.com",
		"arstechnica.com", "venturebeat.com", "engadget.com",
	}
	ugcDomains = []string{
		"reddit.com", "quora.com", "stackoverflow.com", "stackexchange.com",
		"news.ycombinator.com", "medium.com", "twitter.com", "x.com",
		"linkedin.com", "facebook.com", "youtube.com", "tiktok.com",
		"producthunt.com", "trustpilot.com", "g2.com", "capterra.com",
	}
	referenceDomains = []string{
		"wikipedia.org", "en.wikipedia.org", "britannica.com",
		"wiktionary.org", "wikidata.org", "investopedia.com",
	}
	institutionalDomains = []string{
		"who.int", "un.org", "europa.eu", "oecd.org", "worldbank.org",
		"imf.org", "nsf.gov", "nih.gov",
	}
)

// DefaultTaxonomy builds the built-in source-type taxonomy.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		editorial:     toSet(editorialDomains),
		ugc:           toSet(ugcDomains),
		reference:     toSet(referenceDomains),
		institutional: toSet(institutionalDomains),
	}
}

func toSet(domains []string) map[string]struct{} {
	s := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		s[d] = struct{}{}
	}
	return s
}

// Classify implements Policy.
func (t *Taxonomy) Classify(domain string) model.SourceType {
	// Academic and government TLDs outrank everything else: mit.edu is
	// institutional even though universities run blogs.
	if hasTLDSuffix(domain, ".edu") || hasTLDSuffix(domain, ".gov") ||
		hasTLDSuffix(domain, ".ac.uk") || hasTLDSuffix(domain, ".edu.au") {
		return model.SourceInstitutional
	}

	if matchesSet(domain, t.editorial) {
		return model.SourceEditorial
	}
	if matchesSet(domain, t.ugc) {
		return model.SourceUGC
	}
	if matchesSet(domain, t.reference) {
		return model.SourceReference
	}
	if matchesSet(domain, t.institutional) {
		return model.SourceInstitutional
	}

	if hasTLDSuffix(domain, ".com") || hasTLDSuffix(domain, ".io") ||
		hasTLDSuffix(domain, ".co") || hasTLDSuffix(domain, ".net") ||
		hasTLDSuffix(domain, ".org") {
		if strings.Contains(domain, "blog") || strings.Contains(domain, "news") {
			return model.SourceEditorial
		}
		return model.SourceCorporate
	}

	return model.SourceOther
}

// matchesSet reports whether the domain or any registrable parent of it is in
// the set, so blog.medium.com matches medium.com.
func matchesSet(domain string, set map[string]struct{}) bool {
	for d := domain; d != ""; {
		if _, ok := set[d]; ok {
			return true
		}
		i := strings.Index(d, ".")
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return false
}

func hasTLDSuffix(domain, suffix string) bool {
	return strings.HasSuffix(domain, suffix)
}
