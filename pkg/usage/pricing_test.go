package usage

import (
	"math"
	"testing"
)

func TestPricing_Lookup(t *testing.T) {
	p := Pricing{
		"claude-sonnet-4":          {Input: 3, Output: 15},
		"claude-sonnet-4-20250514": {Input: 2, Output: 10},
		"claude":                   {Input: 1, Output: 1},
	}

	tests := []struct {
		model string
		want  Price
		ok    bool
	}{
		{"claude-sonnet-4-20250514", Price{2, 10}, true},
		{"claude-sonnet-4-5", Price{3, 15}, true},
		{"claude-instant", Price{1, 1}, true},
		{"gpt-4", Price{}, false},
	}
	for _, tt := range tests {
		got, ok := p.Lookup(tt.model)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Lookup(%q) = %+v, %v; want %+v, %v", tt.model, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPricing_Cost(t *testing.T) {
	p := DefaultPricing()

	tests := []struct {
		name   string
		tokens Tokens
		want   float64
	}{
		{"opus", Tokens{Model: "claude-opus-4-1-20250805", InputTokens: 1_000_000, OutputTokens: 1_000_000}, 90},
		{"sonnet", Tokens{Model: "claude-sonnet-4-20250514", InputTokens: 1000, OutputTokens: 2000}, 0.033},
		{
			"cache tokens",
			Tokens{Model: "claude-sonnet-4-20250514", CacheCreationTokens: 1_000_000, CacheReadTokens: 1_000_000},
			3*1.25 + 3*0.1,
		},
		{"unknown model", Tokens{Model: "mystery", InputTokens: 1_000_000}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Cost(tt.tokens); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cost() = %v, want %v", got, tt.want)
			}
		})
	}
}
