package cost

import (
	"github.com/sells-group/visibility-cli/internal/config"
)

// Calculator computes per-call USD costs from token usage.
type Calculator struct {
	pricing config.PricingConfig
}

// NewCalculator creates a Calculator with the given pricing rates.
func NewCalculator(pricing config.PricingConfig) *Calculator {
	return &Calculator{pricing: pricing}
}

// Call computes the cost of a single backend call. Unknown backends cost 0.
func (c *Calculator) Call(backend string, inputTokens, outputTokens int) float64 {
	var rate config.ModelPricing
	switch backend {
	case "openai":
		rate = c.pricing.OpenAI
	case "anthropic":
		rate = c.pricing.Anthropic
	case "perplexity":
		rate = c.pricing.Perplexity
	case "gemini":
		rate = c.pricing.Gemini
	default:
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}
