package usage

import (
	"sort"
	"strings"
)

// Price is the cost of a model in USD per million tokens.
type Price struct {
	Input  float64 `yaml:"input" json:"input"`
	Output float64 `yaml:"output" json:"output"`
}

// Cache writes are billed at 1.25x and cache reads at 0.1x the input rate.
const (
	cacheWriteMultiplier = 1.25
	cacheReadMultiplier  = 0.1
)

// Pricing maps model names or name prefixes to prices.
type Pricing map[string]Price

// DefaultPricing returns list prices for current model families.
func DefaultPricing() Pricing {
	return Pricing{
		"claude-opus-4":     {Input: 15, Output: 75},
		"claude-sonnet-4":   {Input: 3, Output: 15},
		"claude-3-7-sonnet": {Input: 3, Output: 15},
		"claude-3-5-sonnet": {Input: 3, Output: 15},
		"claude-haiku-4":    {Input: 1, Output: 5},
		"claude-3-5-haiku":  {Input: 0.8, Output: 4},
		"claude-3-haiku":    {Input: 0.25, Output: 1.25},
	}
}

// Lookup returns the price for model: an exact entry if present, otherwise the
// longest key that prefixes the model name, e.g. "claude-sonnet-4" for
// "claude-sonnet-4-20250514".
func (p Pricing) Lookup(model string) (Price, bool) {
	if price, ok := p[model]; ok {
		return price, true
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, k := range keys {
		if strings.HasPrefix(model, k) {
			return p[k], true
		}
	}
	return Price{}, false
}

// Cost computes the USD cost of t. Unknown models cost zero.
func (p Pricing) Cost(t Tokens) float64 {
	price, ok := p.Lookup(t.Model)
	if !ok {
		return 0
	}
	input := float64(t.InputTokens) +
		float64(t.CacheCreationTokens)*cacheWriteMultiplier +
		float64(t.CacheReadTokens)*cacheReadMultiplier
	return (input*price.Input + float64(t.OutputTokens)*price.Output) / 1_000_000
}
