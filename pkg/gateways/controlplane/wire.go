// Wire contract with the control plane
package controlplane

import (
	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Endpoint paths, relative to the broker base URL.
const (
	pathInvoke        = "/llm/invoke"
	pathPersist       = "/messages/persist"
	pathPresignedURLs = "/files/presigned-urls"
	pathSessionCost   = "/sessions/cost"
)

// invokePayload is the body of POST /llm/invoke.
type invokePayload struct {
	NewMessages []gateway.Message  `json:"new_messages"`
	SessionID   string             `json:"session_id,omitempty"`
	Tools       []gateway.Tool     `json:"tools,omitempty"`
	ToolChoice  gateway.ToolChoice `json:"tool_choice,omitzero"`
}

// invokeResult is the broker's response to a successful invocation. The
// broker reports the assistant turn as bare role/content; the SDK assigns
// the turn its identity on receipt.
type invokeResult struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Usage        gateway.TokenUsage `json:"usage"`
	ToolCalls    []gateway.ToolCall `json:"tool_calls,omitempty"`
	CostUSD      float64            `json:"cost_usd"`
	Model        string             `json:"model"`
	FinishReason string             `json:"finish_reason"`
}

// persistPayload is the body of POST /messages/persist. Messages travel with
// their IDs; the broker deduplicates on them.
type persistPayload struct {
	Messages  []gateway.Message `json:"messages"`
	SessionID string            `json:"session_id,omitempty"`
}

// fileURLPayload is the body of POST /files/presigned-urls.
type fileURLPayload struct {
	FilePath  string `json:"file_path"`
	Method    string `json:"method"`
	SessionID string `json:"session_id,omitempty"`
}

// costResult is the response of GET /sessions/cost.
type costResult struct {
	CostUSD float64 `json:"cost_usd"`
}

// apiErrorBody is the broker's structured error envelope. Kind-specific
// fields are populated only for the kinds that define them.
type apiErrorBody struct {
	Error struct {
		Code              string  `json:"code"`
		Message           string  `json:"message"`
		CapUSD            float64 `json:"cap_usd,omitempty"`
		ConsumedUSD       float64 `json:"consumed_usd,omitempty"`
		RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
	} `json:"error"`
}
