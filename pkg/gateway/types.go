// Core request and response types
package gateway

import "time"

// InvokeRequest represents a single LLM invocation through a Gateway.
// Messages carries the caller's new conversation turns in order; the gateway
// implementation owns how they combine with prior history.
type InvokeRequest struct {
	Messages   []Message  `json:"messages"`
	Tools      []Tool     `json:"tools,omitempty"`
	ToolChoice ToolChoice `json:"tool_choice,omitzero"`
}

// FinishReason enumerates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
)

// TokenUsage represents token accounting for one completed call
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}

// LLMResponse represents one completed LLM invocation. Exactly one value is
// produced per successful InvokeLLM call; CostUSD is the authoritative cost
// of that call and is what the session ledger records.
type LLMResponse struct {
	Message      Message      `json:"message"`
	CostUSD      float64      `json:"cost_usd"`
	Model        string       `json:"model"`
	FinishReason FinishReason `json:"finish_reason"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	Usage        TokenUsage   `json:"usage"`
}

// WantsToolExecution checks if the response asks the caller to execute tools
// before the conversation can continue.
func (r *LLMResponse) WantsToolExecution() bool {
	return r.FinishReason == FinishReasonToolCalls || len(r.ToolCalls) > 0
}

// IsComplete checks if the response is a terminal turn (no tool execution
// pending).
func (r *LLMResponse) IsComplete() bool {
	return r.FinishReason == FinishReasonStop || r.FinishReason == FinishReasonLength
}

// Clone creates a deep copy of the response. Modifications to the copy will
// not affect the original, preventing shared mutable state when responses are
// handed to middleware or recorded by test doubles.
func (r *LLMResponse) Clone() *LLMResponse {
	if r == nil {
		return nil
	}
	clone := &LLMResponse{
		Message:      r.Message.Clone(),
		CostUSD:      r.CostUSD,
		Model:        r.Model,
		FinishReason: r.FinishReason,
		Usage:        r.Usage,
	}
	if len(r.ToolCalls) > 0 {
		clone.ToolCalls = make([]ToolCall, 0, len(r.ToolCalls))
		for _, toolCall := range r.ToolCalls {
			clone.ToolCalls = append(clone.ToolCalls, toolCall.Clone())
		}
	}
	return clone
}

// URLMethod is the HTTP verb a presigned URL grants.
type URLMethod string

const (
	URLMethodPut URLMethod = "PUT"
	URLMethodGet URLMethod = "GET"
)

// PresignedURL is a time-bounded capability grant for object storage access.
// Consuming the URL is the caller's responsibility; the gateway never retries
// its use.
type PresignedURL struct {
	URL       string    `json:"url"`
	Method    URLMethod `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
	FilePath  string    `json:"file_path"`
}

// Expired reports whether the grant has passed its expiry at the given time.
func (p *PresignedURL) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// CompletionRequest is what a Direct gateway hands to its Provider adapter:
// the full conversation so far plus tool declarations.
type CompletionRequest struct {
	Messages    []Message  `json:"messages"`
	Tools       []Tool     `json:"tools,omitempty"`
	ToolChoice  ToolChoice `json:"tool_choice,omitzero"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	Temperature *float32   `json:"temperature,omitempty"`
}

// Completion is a Provider adapter's normalized result: the assistant turn,
// the concrete model that served it, and token usage for cost computation.
type Completion struct {
	Message      Message      `json:"message"`
	Model        string       `json:"model"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
}
