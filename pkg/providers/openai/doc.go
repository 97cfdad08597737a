// Package openai provides an OpenAI provider adapter for direct gateways.
//
// This package implements the gateway.Provider interface for OpenAI's GPT
// models, supporting chat completions, tools (function calling), and forced
// tool choice. It also serves any OpenAI-compatible endpoint when a custom
// base URL is configured.
//
// The adapter normalizes OpenAI finish reasons, token usage, and API errors
// to the gateway types; rate limiting surfaces as *gateway.RateLimitError and
// credential problems as *gateway.AuthError so callers can react uniformly
// across providers.
package openai
