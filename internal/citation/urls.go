package citation

import (
	"regexp"
	"strings"
)

// urlPattern matches http(s) URLs embedded in response prose. Trailing
// sentence punctuation is trimmed after the match.
var urlPattern = regexp.MustCompile(`https?://[^\s<>()\[\]{}"']+`)

// ExtractURLs pulls cited URLs out of free-form response text, in order of
// appearance, de-duplicated. Used for backends that do not return
// structured citation data alongside the call.
func ExtractURLs(text string) []string {
	raw := urlPattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimRight(u, ".,;:!?")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
