// Package deepseek provides a provider adapter for DeepSeek models.
//
// This adapter implements the gateway.Provider interface for DeepSeek's API
// using the cohesion-org/deepseek-go SDK, supporting chat completions and
// tool calling.
//
// Key behaviors:
//   - Tool declarations convert to the SDK's structured parameter form
//   - Tool choice beyond auto is rejected up front rather than ignored,
//     since the SDK cannot express it
//   - Errors classify into the gateway taxonomy by message content, the
//     SDK surfaces no structured error type
//
// Usage:
//
//	config := gateway.ProviderConfig{
//	    Provider: "deepseek",
//	    APIKey:   "your-api-key",
//	    Model:    "deepseek-chat",
//	}
//	provider, err := deepseek.NewClient(config)
package deepseek
