package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single url",
			text: "See https://techcrunch.com/best-crm for details.",
			want: []string{"https://techcrunch.com/best-crm"},
		},
		{
			name: "trailing punctuation trimmed",
			text: "Sources: https://reddit.com/r/crm, and https://wikipedia.org/wiki/CRM.",
			want: []string{"https://reddit.com/r/crm", "https://wikipedia.org/wiki/CRM"},
		},
		{
			name: "duplicates removed in order",
			text: "https://a.example/x then https://b.example/y then https://a.example/x again",
			want: []string{"https://a.example/x", "https://b.example/y"},
		},
		{
			name: "parenthesized markdown link",
			text: "Per [this report](https://forbes.com/report) it leads.",
			want: []string{"https://forbes.com/report"},
		},
		{
			name: "no urls",
			text: "Nothing cited here.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.text))
		})
	}
}
