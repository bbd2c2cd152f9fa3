package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/visibility-cli/internal/config"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		OpenAI:     config.ModelPricing{Input: 2.00, Output: 8.00},
		Anthropic:  config.ModelPricing{Input: 3.00, Output: 15.00},
		Perplexity: config.ModelPricing{Input: 3.00, Output: 15.00},
		Gemini:     config.ModelPricing{Input: 0.10, Output: 0.40},
	}
}

func TestCalculatorCall(t *testing.T) {
	calc := NewCalculator(testPricing())

	tests := []struct {
		name    string
		backend string
		in, out int
		want    float64
	}{
		{"openai 1M/1M", "openai", 1_000_000, 1_000_000, 10.00},
		{"anthropic small", "anthropic", 1000, 500, 0.003 + 0.0075},
		{"gemini cheap", "gemini", 1_000_000, 0, 0.10},
		{"perplexity", "perplexity", 0, 1_000_000, 15.00},
		{"zero tokens", "openai", 0, 0, 0},
		{"unknown backend", "mistral", 1_000_000, 1_000_000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Call(tt.backend, tt.in, tt.out), 1e-9)
		})
	}
}
