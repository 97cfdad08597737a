// Package ollama implements the gateway.Provider interface against a local
// Ollama daemon using the official API client.
//
// The adapter targets the /api/chat endpoint with streaming disabled, so one
// request yields one complete assistant turn. Tool declarations are rejected
// with a validation error; locally served models cannot be relied on to honor
// the tool-calling contract.
//
// The daemon address defaults to http://localhost:11434 and no API key is
// required, which makes Ollama the fallback provider when no hosted
// credentials are configured.
package ollama
