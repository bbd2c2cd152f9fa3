package citation

import (
	"sort"

	"github.com/sells-group/visibility-cli/internal/model"
)

// DomainShare is one cited domain's slice of a citation set.
type DomainShare struct {
	Domain     string           `json:"domain"`
	SourceType model.SourceType `json:"source_type"`
	Count      int              `json:"count"`
	Percentage float64          `json:"percentage"`
}

// Aggregate groups citations by domain and returns shares sorted by count
// descending, with domain name as the tie-break so the output is stable.
// Percentages are of the total citation count, not of distinct domains.
func Aggregate(citations []model.Citation) []DomainShare {
	if len(citations) == 0 {
		return nil
	}

	counts := make(map[string]*DomainShare)
	for _, c := range citations {
		if s, ok := counts[c.Domain]; ok {
			s.Count++
			continue
		}
		counts[c.Domain] = &DomainShare{
			Domain:     c.Domain,
			SourceType: c.SourceType,
			Count:      1,
		}
	}

	shares := make([]DomainShare, 0, len(counts))
	for _, s := range counts {
		s.Percentage = 100 * float64(s.Count) / float64(len(citations))
		shares = append(shares, *s)
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Domain < shares[j].Domain
	})

	return shares
}

// TypeDistribution counts citations per source type.
func TypeDistribution(citations []model.Citation) map[model.SourceType]int {
	if len(citations) == 0 {
		return nil
	}
	dist := make(map[model.SourceType]int)
	for _, c := range citations {
		dist[c.SourceType]++
	}
	return dist
}
