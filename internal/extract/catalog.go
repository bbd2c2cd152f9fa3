package extract

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Catalog holds the entities mined for one extraction domain, in a stable
// order. The order matters: it breaks ties when two entities first appear at
// the same character offset.
type Catalog struct {
	Domain  model.ExtractionDomain
	entries []catalogEntry
}

type catalogEntry struct {
	entity        model.Entity
	namePattern   *regexp.Regexp
	aliasPatterns []*regexp.Regexp
}

// NewCatalog compiles match patterns for the given entities. The canonical
// display name matches as a case-insensitive substring; aliases only match
// at word boundaries so a short alias (e.g. "MIT") cannot fire inside an
// unrelated word (e.g. "Smithsonian").
func NewCatalog(domain model.ExtractionDomain, entities []model.Entity) (*Catalog, error) {
	c := &Catalog{Domain: domain, entries: make([]catalogEntry, 0, len(entities))}

	for _, e := range entities {
		if e.DisplayName == "" {
			return nil, eris.Errorf("catalog: entity %s has no display name", e.ID)
		}
		namePattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(e.DisplayName))
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: compile name pattern for %s", e.ID)
		}

		entry := catalogEntry{entity: e, namePattern: namePattern}
		for _, alias := range e.Aliases {
			if alias == "" {
				continue
			}
			p, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`)
			if err != nil {
				return nil, eris.Wrapf(err, "catalog: compile alias pattern %q for %s", alias, e.ID)
			}
			entry.aliasPatterns = append(entry.aliasPatterns, p)
		}
		c.entries = append(c.entries, entry)
	}

	return c, nil
}

// Entities returns the catalog entities in stable order.
func (c *Catalog) Entities() []model.Entity {
	out := make([]model.Entity, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.entity
	}
	return out
}

// Len returns the number of catalog entities.
func (c *Catalog) Len() int { return len(c.entries) }

// catalogFile is the on-disk YAML shape for entity catalogs.
type catalogFile struct {
	Domain   string `yaml:"domain"`
	Entities []struct {
		ID          string   `yaml:"id"`
		DisplayName string   `yaml:"display_name"`
		Aliases     []string `yaml:"aliases"`
		Kind        string   `yaml:"kind"`
		Category    string   `yaml:"category"`
		Website     string   `yaml:"website"`
		CountryCode string   `yaml:"country_code"`
	} `yaml:"entities"`
}

// LoadCatalogEntities reads the entity list for a domain from
// <dir>/<domain>.yaml. The loaded entities are typically imported into the
// store once and read back from there on subsequent runs.
func LoadCatalogEntities(dir string, domain model.ExtractionDomain) ([]model.Entity, error) {
	// Exhaustive: every ExtractionDomain must have a catalog file mapping.
	switch domain {
	case model.DomainBrands, model.DomainUniversities:
	default:
		return nil, eris.Errorf("catalog: no catalog defined for domain %q", domain)
	}

	path := filepath.Join(dir, string(domain)+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	if f.Domain != string(domain) {
		return nil, eris.Errorf("catalog: %s declares domain %q, want %q", path, f.Domain, domain)
	}

	entities := make([]model.Entity, 0, len(f.Entities))
	for _, raw := range f.Entities {
		e := model.Entity{
			ID:          raw.ID,
			DisplayName: raw.DisplayName,
			Aliases:     raw.Aliases,
			Kind:        model.EntityKind(raw.Kind),
			Category:    raw.Category,
			Domain:      domain,
		}
		if raw.Website != "" {
			e.Website = &raw.Website
		}
		if raw.CountryCode != "" {
			e.CountryCode = &raw.CountryCode
		}
		if e.Kind == "" {
			if domain == model.DomainUniversities {
				e.Kind = model.KindInstitution
			} else {
				e.Kind = model.KindBrand
			}
		}
		entities = append(entities, e)
	}

	return entities, nil
}
