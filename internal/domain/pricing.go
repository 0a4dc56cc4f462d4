package domain

import "strings"

type ModelPricing struct {
	Prefix           string
	InputPerMillion  float64
	OutputPerMillion float64
}

// Cache reads bill at a tenth of the input rate and cache writes at 1.25x.
func (p ModelPricing) CalculateCost(u Usage) float64 {
	cost := float64(u.InputTokens) * p.InputPerMillion / 1_000_000
	cost += float64(u.OutputTokens) * p.OutputPerMillion / 1_000_000
	cost += float64(u.CacheReadTokens) * p.InputPerMillion * 0.1 / 1_000_000
	cost += float64(u.CacheWriteTokens) * p.InputPerMillion * 1.25 / 1_000_000
	return cost
}

// Ordered most specific first.
var defaultPricing = []ModelPricing{
	{Prefix: "claude-opus-4-5", InputPerMillion: 5, OutputPerMillion: 25},
	{Prefix: "claude-opus-4", InputPerMillion: 15, OutputPerMillion: 75},
	{Prefix: "claude-sonnet-4", InputPerMillion: 3, OutputPerMillion: 15},
	{Prefix: "claude-3-7-sonnet", InputPerMillion: 3, OutputPerMillion: 15},
	{Prefix: "claude-haiku-4-5", InputPerMillion: 1, OutputPerMillion: 5},
	{Prefix: "claude-3-5-haiku", InputPerMillion: 0.8, OutputPerMillion: 4},
}

// PricingFor returns the pricing for a model id, falling back to sonnet rates
// for unknown models.
func PricingFor(modelID string) ModelPricing {
	id := strings.ToLower(strings.TrimSpace(modelID))
	for _, p := range defaultPricing {
		if strings.HasPrefix(id, p.Prefix) {
			return p
		}
	}
	return ModelPricing{Prefix: "default", InputPerMillion: 3, OutputPerMillion: 15}
}
