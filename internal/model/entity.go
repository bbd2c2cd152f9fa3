package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ExtractionDomain selects which entity catalog and sentiment lexicon a
// prompt's responses are mined with.
type ExtractionDomain string

const (
	DomainBrands       ExtractionDomain = "brands"
	DomainUniversities ExtractionDomain = "universities"
)

// AllDomains lists every supported extraction domain.
func AllDomains() []ExtractionDomain {
	return []ExtractionDomain{DomainBrands, DomainUniversities}
}

// ParseExtractionDomain validates a raw topic string.
func ParseExtractionDomain(s string) (ExtractionDomain, error) {
	switch ExtractionDomain(s) {
	case DomainBrands:
		return DomainBrands, nil
	case DomainUniversities:
		return DomainUniversities, nil
	default:
		return "", eris.Errorf("unknown extraction domain: %q", s)
	}
}

// EntityKind discriminates tracked entity payloads.
type EntityKind string

const (
	KindBrand       EntityKind = "brand"
	KindInstitution EntityKind = "institution"
)

// Entity is a tracked brand or institution. Score fields are derived:
// they are recomputed wholesale from the mention history and never
// incrementally patched.
type Entity struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"display_name"`
	Aliases     []string         `json:"aliases,omitempty"`
	Kind        EntityKind       `json:"kind"`
	Category    string           `json:"category"`
	Domain      ExtractionDomain `json:"domain"`

	// Kind-specific optional fields.
	Website     *string `json:"website,omitempty"`      // brands
	CountryCode *string `json:"country_code,omitempty"` // institutions

	// Derived, updated in place by the scorer.
	VisibilityScore float64 `json:"visibility_score"`
	RankInCategory  int     `json:"rank_in_category"`
	RankGlobal      int     `json:"rank_global"`
}

// ScoreComponents holds the four independently capped 0-25 score parts.
type ScoreComponents struct {
	ModelCoverage float64 `json:"model_coverage"`
	CategoryShare float64 `json:"category_share"`
	RankPosition  float64 `json:"rank_position"`
	QueryBreadth  float64 `json:"query_breadth"`
}

// Total sums the components into the 0-100 visibility score.
func (c ScoreComponents) Total() float64 {
	return c.ModelCoverage + c.CategoryShare + c.RankPosition + c.QueryBreadth
}

// Snapshot records a point-in-time score for trend charts. At most one
// exists per entity per calendar day; read-only once written.
type Snapshot struct {
	EntityID   string          `json:"entity_id"`
	Date       string          `json:"date"` // YYYY-MM-DD
	Components ScoreComponents `json:"score_components"`
	Score      float64         `json:"score"`
	TakenAt    time.Time       `json:"taken_at"`
}
