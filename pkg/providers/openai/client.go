package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Client implements the gateway.Provider interface for OpenAI
type Client struct {
	client  *openai.Client
	model   string
	baseURL string
}

// NewClient creates a new OpenAI provider adapter
func NewClient(config gateway.ProviderConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &gateway.Error{
			Code:    "missing_api_key",
			Message: "API key is required for OpenAI",
			Kind:    gateway.KindConfiguration,
		}
	}

	model := config.Model
	if model == "" {
		model = gateway.DefaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		baseURL: config.BaseURL,
	}, nil
}

// Complete performs a non-streaming chat completion request
func (c *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.convertRequest(req))
	if err != nil {
		return nil, c.convertError(err)
	}
	return c.convertResponse(resp)
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "openai"
}

// Model returns the configured model
func (c *Client) Model() string {
	return c.model
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	// OpenAI client doesn't require explicit cleanup
	return nil
}

// convertRequest converts a CompletionRequest to OpenAI format
func (c *Client) convertRequest(req gateway.CompletionRequest) openai.ChatCompletionRequest {
	openaiReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.convertMessages(req.Messages),
	}

	// Handle optional pointer fields
	if req.Temperature != nil {
		openaiReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		openaiReq.MaxTokens = *req.MaxTokens
	}

	// Convert tools
	for _, tool := range req.Tools {
		openaiReq.Tools = append(openaiReq.Tools, openai.Tool{
			Type: openai.ToolType(tool.Type),
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	switch req.ToolChoice.Mode {
	case "":
		// Unspecified: let the API apply its default
	case gateway.ToolChoiceModeFunction:
		openaiReq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.ToolChoice.Name},
		}
	default:
		openaiReq.ToolChoice = string(req.ToolChoice.Mode)
	}

	return openaiReq
}

// convertMessages converts gateway messages to OpenAI format
func (c *Client) convertMessages(messages []gateway.Message) []openai.ChatCompletionMessage {
	var openaiMessages []openai.ChatCompletionMessage

	for _, msg := range messages {
		openaiMsg := openai.ChatCompletionMessage{
			Role: string(msg.Role),
			Name: msg.Name,
		}

		// Handle tool calls
		for _, tc := range msg.ToolCalls {
			openaiMsg.ToolCalls = append(openaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		// Handle tool call ID for tool response messages
		if msg.ToolCallID != "" {
			openaiMsg.ToolCallID = msg.ToolCallID
		}

		// Always ensure Content is set: some OpenAI-compatible endpoints
		// reject messages whose content serializes to undefined. Assistant
		// turns that carry only tool calls may stay empty.
		if strings.TrimSpace(msg.Content) == "" && len(msg.ToolCalls) == 0 {
			openaiMsg.Content = " "
		} else {
			openaiMsg.Content = msg.Content
		}

		openaiMessages = append(openaiMessages, openaiMsg)
	}

	return openaiMessages
}

// convertResponse converts an OpenAI response to a Completion
func (c *Client) convertResponse(resp openai.ChatCompletionResponse) (*gateway.Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, &gateway.ProviderError{
			Provider: "openai",
			Code:     "empty_response",
			Message:  "response contained no choices",
		}
	}

	choice := resp.Choices[0]
	completion := &gateway.Completion{
		Message:      c.convertMessage(choice.Message),
		Model:        resp.Model,
		FinishReason: c.convertFinishReason(choice.FinishReason, len(choice.Message.ToolCalls) > 0),
		Usage: gateway.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	if resp.Usage.PromptTokensDetails != nil {
		completion.Usage.CachedTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	return completion, nil
}

// convertMessage converts an OpenAI assistant message to gateway format
func (c *Client) convertMessage(msg openai.ChatCompletionMessage) gateway.Message {
	ourMsg := gateway.NewAssistantMessage(msg.Content)

	for _, tc := range msg.ToolCalls {
		ourMsg.ToolCalls = append(ourMsg.ToolCalls, gateway.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: gateway.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	return ourMsg
}

// convertFinishReason normalizes an OpenAI finish reason
func (c *Client) convertFinishReason(reason openai.FinishReason, hasToolCalls bool) gateway.FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return gateway.FinishReasonStop
	case openai.FinishReasonLength:
		return gateway.FinishReasonLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return gateway.FinishReasonToolCalls
	case openai.FinishReasonContentFilter:
		return gateway.FinishReasonContentFilter
	default:
		if hasToolCalls {
			return gateway.FinishReasonToolCalls
		}
		return gateway.FinishReasonStop
	}
}

// convertError maps an OpenAI error to the gateway taxonomy
func (c *Client) convertError(err error) error {
	// Context cancellation is the caller's signal, not a provider failure
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := "api_error"
		if codeStr, ok := apiErr.Code.(string); ok && codeStr != "" {
			code = codeStr
		}

		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &gateway.RateLimitError{
				RetryAfter: gateway.DefaultRetryAfter,
				Provider:   "openai",
				Message:    apiErr.Message,
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &gateway.AuthError{Reason: apiErr.Message}
		default:
			return &gateway.ProviderError{
				Provider:   "openai",
				Code:       code,
				Message:    apiErr.Message,
				StatusCode: apiErr.HTTPStatusCode,
			}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &gateway.RateLimitError{
				RetryAfter: gateway.DefaultRetryAfter,
				Provider:   "openai",
				Message:    reqErr.Error(),
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &gateway.AuthError{Reason: reqErr.Error()}
		default:
			return &gateway.ProviderError{
				Provider:   "openai",
				Code:       "request_failed",
				Message:    reqErr.Error(),
				StatusCode: reqErr.HTTPStatusCode,
			}
		}
	}

	// Transport-level failure: the request never produced a provider verdict
	return &gateway.ProviderError{
		Provider: "openai",
		Code:     "connection_error",
		Message:  err.Error(),
	}
}
