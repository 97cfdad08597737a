// Package gemini provides a provider adapter for Google Gemini models.
//
// This adapter implements the gateway.Provider interface for Google's Gemini
// API using the official Google Generative AI library. Conversations map onto
// genai chat sessions: earlier turns seed the session history and the final
// turn is sent as the message.
//
// Key behaviors:
//   - System turns become the session's system instruction
//   - Tool declarations pass their JSON schemas through unchanged
//   - Function calls and function responses round-trip as gateway tool calls
//   - Errors are classified into the gateway taxonomy, falling back to
//     message-content matching when no structured API error is available
//
// Usage:
//
//	config := gateway.ProviderConfig{
//	    Provider: "gemini",
//	    APIKey:   "your-api-key",
//	    Model:    "gemini-1.5-flash",
//	}
//	provider, err := gemini.NewClient(config)
package gemini
