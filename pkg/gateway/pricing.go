// Model pricing tables for local cost computation
package gateway

import "strings"

// ModelPricing holds per-million-token USD rates for one model.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// fallbackPerToken is charged per total token when a model has no table
// entry. Deliberately conservative so unknown models overcount rather than
// undercount against the cap.
const fallbackPerToken = 0.000010

// Pricing maps model identifiers to their rates. Direct gateways use it to
// compute the authoritative cost of a call from provider token usage;
// control-plane gateways never consult it, the broker's figure is ground
// truth there.
type Pricing map[string]ModelPricing

// DefaultPricing returns the built-in rate table. Callers with newer models
// or negotiated rates supply their own table instead.
func DefaultPricing() Pricing {
	return Pricing{
		"gpt-4o":                     {InputPerMTok: 2.50, OutputPerMTok: 10.00},
		"gpt-4o-mini":                {InputPerMTok: 0.15, OutputPerMTok: 0.60},
		"gpt-4-turbo":                {InputPerMTok: 10.00, OutputPerMTok: 30.00},
		"gpt-3.5-turbo":              {InputPerMTok: 0.50, OutputPerMTok: 1.50},
		"claude-3-5-sonnet-20241022": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
		"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
		"claude-3-opus-20240229":     {InputPerMTok: 15.00, OutputPerMTok: 75.00},
		"gemini-1.5-pro":             {InputPerMTok: 1.25, OutputPerMTok: 5.00},
		"gemini-1.5-flash":           {InputPerMTok: 0.075, OutputPerMTok: 0.30},
		"deepseek-chat":              {InputPerMTok: 0.14, OutputPerMTok: 0.28},
	}
}

// Cost computes the USD cost of one call from its token usage. Model lookup
// is exact first, then substring (bedrock model ARNs embed the model name,
// e.g. "anthropic.claude-3-5-sonnet-20241022-v2:0"); unknown models fall
// back to a flat per-token rate.
func (p Pricing) Cost(model string, usage TokenUsage) float64 {
	if rates, ok := p[model]; ok {
		return rates.cost(usage)
	}
	for name, rates := range p {
		if strings.Contains(model, name) {
			return rates.cost(usage)
		}
	}
	return float64(usage.InputTokens+usage.OutputTokens) * fallbackPerToken
}

func (mp ModelPricing) cost(usage TokenUsage) float64 {
	in := float64(usage.InputTokens) * mp.InputPerMTok / 1e6
	out := float64(usage.OutputTokens) * mp.OutputPerMTok / 1e6
	return in + out
}
