package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingCost(t *testing.T) {
	pricing := DefaultPricing()

	t.Run("exact_match", func(t *testing.T) {
		// gpt-4o-mini: $0.15 in, $0.60 out per MTok
		usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
		assert.InDelta(t, 0.75, pricing.Cost("gpt-4o-mini", usage), 1e-12)
	})

	t.Run("claude_rates", func(t *testing.T) {
		usage := TokenUsage{InputTokens: 1000, OutputTokens: 500}
		// 1000 * 3/1e6 + 500 * 15/1e6
		assert.InDelta(t, 0.0105, pricing.Cost("claude-3-5-sonnet-20241022", usage), 1e-12)
	})

	t.Run("substring_match_for_model_arns", func(t *testing.T) {
		usage := TokenUsage{InputTokens: 1000, OutputTokens: 500}
		arn := "anthropic.claude-3-5-sonnet-20241022-v2:0"
		assert.InDelta(t, 0.0105, pricing.Cost(arn, usage), 1e-12)
	})

	t.Run("unknown_model_fallback", func(t *testing.T) {
		usage := TokenUsage{InputTokens: 600, OutputTokens: 400}
		// (600+400) * 0.000010
		assert.InDelta(t, 0.01, pricing.Cost("experimental-model-x", usage), 1e-12)
	})

	t.Run("zero_usage_costs_nothing", func(t *testing.T) {
		assert.Zero(t, pricing.Cost("gpt-4o", TokenUsage{}))
	})
}

func TestPricingCustomTable(t *testing.T) {
	custom := Pricing{
		"house-model": {InputPerMTok: 1.00, OutputPerMTok: 2.00},
	}
	usage := TokenUsage{InputTokens: 2_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.0, custom.Cost("house-model", usage), 1e-12)
}
