package deepseek

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cohesion-org/deepseek-go"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Client implements the gateway.Provider interface for DeepSeek
type Client struct {
	client *deepseek.Client
	model  string
}

// NewClient creates a new DeepSeek provider adapter
func NewClient(config gateway.ProviderConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &gateway.Error{
			Code:    "missing_api_key",
			Message: "API key is required for DeepSeek",
			Kind:    gateway.KindConfiguration,
		}
	}
	if config.Model == "" {
		return nil, &gateway.Error{
			Code:    "missing_model",
			Message: "model is required for DeepSeek client",
			Kind:    gateway.KindConfiguration,
		}
	}

	var opts []deepseek.Option
	if config.BaseURL != "" {
		// Basic URL validation
		if config.BaseURL == "http://" || config.BaseURL == "https://" {
			return nil, &gateway.Error{
				Code:    "invalid_base_url",
				Message: "base URL cannot be just a protocol",
				Kind:    gateway.KindValidation,
			}
		}
		opts = append(opts, deepseek.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, deepseek.WithTimeout(config.Timeout))
	}

	var client *deepseek.Client
	var err error
	if len(opts) > 0 {
		client, err = deepseek.NewClientWithOptions(config.APIKey, opts...)
		if err != nil {
			return nil, &gateway.Error{
				Code:    "client_creation_error",
				Message: "Failed to create DeepSeek client: " + err.Error(),
				Kind:    gateway.KindConfiguration,
			}
		}
	} else {
		client = deepseek.NewClient(config.APIKey)
	}

	return &Client{
		client: client,
		model:  config.Model,
	}, nil
}

// Complete performs a non-streaming chat completion request
func (c *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	deepseekReq, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, &deepseekReq)
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(*resp)
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "deepseek"
}

// Model returns the configured model
func (c *Client) Model() string {
	return c.model
}

// Close cleans up resources
func (c *Client) Close() error {
	// The deepseek-go client manages its own HTTP client internally and
	// doesn't expose a Close method.
	c.client = nil
	return nil
}

// convertRequest converts a CompletionRequest to DeepSeek format
func (c *Client) convertRequest(req gateway.CompletionRequest) (deepseek.ChatCompletionRequest, error) {
	// The SDK carries no tool_choice field, so anything beyond auto cannot
	// be honored and silently ignoring it would change semantics.
	switch req.ToolChoice.Mode {
	case "", gateway.ToolChoiceModeAuto:
	default:
		return deepseek.ChatCompletionRequest{}, &gateway.Error{
			Code:    "tool_choice_not_supported",
			Message: fmt.Sprintf("tool choice %q is not supported by the DeepSeek adapter", req.ToolChoice.Mode),
			Kind:    gateway.KindValidation,
		}
	}

	messages := make([]deepseek.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = c.convertMessage(msg)
	}

	var tools []deepseek.Tool
	if len(req.Tools) > 0 {
		tools = make([]deepseek.Tool, len(req.Tools))
		for i, tool := range req.Tools {
			var params *deepseek.FunctionParameters
			if tool.Function.Parameters != nil {
				params = c.convertToolParameters(tool.Function.Parameters)
			}

			tools[i] = deepseek.Tool{
				Type: tool.Type,
				Function: deepseek.Function{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  params,
				},
			}
		}
	}

	deepseekReq := deepseek.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}

	if req.Temperature != nil {
		deepseekReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		deepseekReq.MaxTokens = *req.MaxTokens
	}

	return deepseekReq, nil
}

// convertMessage converts a gateway message to DeepSeek format
func (c *Client) convertMessage(msg gateway.Message) deepseek.ChatCompletionMessage {
	return deepseek.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCalls:  c.convertToolCallsToDeepSeek(msg.ToolCalls),
		ToolCallID: msg.ToolCallID,
	}
}

// convertToolCallsToDeepSeek converts gateway tool calls to DeepSeek format
func (c *Client) convertToolCallsToDeepSeek(toolCalls []gateway.ToolCall) []deepseek.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	deepseekToolCalls := make([]deepseek.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		deepseekToolCalls[i] = deepseek.ToolCall{
			Index: i, // DeepSeek requires an index
			ID:    tc.ID,
			Type:  tc.Type,
			Function: deepseek.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return deepseekToolCalls
}

// convertResponse converts a DeepSeek response to a Completion
func (c *Client) convertResponse(resp deepseek.ChatCompletionResponse) (*gateway.Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, &gateway.ProviderError{
			Provider: "deepseek",
			Code:     "empty_response",
			Message:  "response contained no choices",
		}
	}

	choice := resp.Choices[0]
	toolCalls := c.convertToolCallsFromDeepSeek(choice.Message.ToolCalls)
	message := gateway.NewAssistantMessage(choice.Message.Content, toolCalls...)

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &gateway.Completion{
		Message:      message,
		Model:        model,
		FinishReason: c.convertFinishReason(choice.FinishReason, len(toolCalls) > 0),
		Usage: gateway.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// convertToolCallsFromDeepSeek converts DeepSeek tool calls to gateway format
func (c *Client) convertToolCallsFromDeepSeek(toolCalls []deepseek.ToolCall) []gateway.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	ourToolCalls := make([]gateway.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		ourToolCalls[i] = gateway.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: gateway.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return ourToolCalls
}

// convertFinishReason normalizes a DeepSeek finish reason
func (c *Client) convertFinishReason(reason string, hasToolCalls bool) gateway.FinishReason {
	switch reason {
	case "stop":
		return gateway.FinishReasonStop
	case "length":
		return gateway.FinishReasonLength
	case "tool_calls":
		return gateway.FinishReasonToolCalls
	case "content_filter":
		return gateway.FinishReasonContentFilter
	default:
		if hasToolCalls {
			return gateway.FinishReasonToolCalls
		}
		return gateway.FinishReasonStop
	}
}

// convertError classifies a DeepSeek error into the gateway taxonomy. The
// SDK surfaces plain errors, so classification works on message content.
func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	errorMsg := err.Error()
	lower := strings.ToLower(errorMsg)

	switch {
	case strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "authentication"):
		return &gateway.AuthError{Reason: errorMsg}
	case strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests"):
		return &gateway.RateLimitError{
			RetryAfter: gateway.DefaultRetryAfter,
			Provider:   "deepseek",
			Message:    errorMsg,
		}
	case strings.Contains(lower, "model") && strings.Contains(lower, "not found"):
		return &gateway.ProviderError{
			Provider: "deepseek",
			Code:     "model_not_found",
			Message:  errorMsg,
		}
	default:
		return &gateway.ProviderError{
			Provider: "deepseek",
			Code:     "api_error",
			Message:  errorMsg,
		}
	}
}

// convertToolParameters converts a schema object to DeepSeek FunctionParameters
func (c *Client) convertToolParameters(params interface{}) *deepseek.FunctionParameters {
	if params == nil {
		return nil
	}

	paramMap, ok := params.(map[string]interface{})
	if !ok {
		// If it's not a map, return a basic object type
		return &deepseek.FunctionParameters{Type: "object"}
	}

	result := &deepseek.FunctionParameters{Type: "object"}

	if typeVal, exists := paramMap["type"]; exists {
		if typeStr, ok := typeVal.(string); ok {
			result.Type = typeStr
		}
	}

	if propsVal, exists := paramMap["properties"]; exists {
		if propsMap, ok := propsVal.(map[string]interface{}); ok {
			result.Properties = propsMap
		}
	}

	if reqVal, exists := paramMap["required"]; exists {
		if reqSlice, ok := reqVal.([]interface{}); ok {
			required := make([]string, 0, len(reqSlice))
			for _, item := range reqSlice {
				if str, ok := item.(string); ok {
					required = append(required, str)
				}
			}
			result.Required = required
		} else if reqStrSlice, ok := reqVal.([]string); ok {
			result.Required = reqStrSlice
		}
	}

	return result
}
