package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Client implements gateway.Provider against a local Ollama server using the
// official API client.
//
// Tool declarations are rejected: local models served through Ollama vary too
// much in tool support to promise the calling contract, so requests carrying
// tools fail fast with a validation error instead of silently degrading.
type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// NewClient creates an Ollama provider. Ollama needs no API key; BaseURL
// defaults to the standard local daemon address.
func NewClient(config gateway.ProviderConfig) (*Client, error) {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = gateway.DefaultOllamaBaseURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &gateway.Error{
			Code:    "invalid_base_url",
			Message: fmt.Sprintf("invalid Ollama base URL %q: %v", baseURL, err),
			Kind:    gateway.KindConfiguration,
		}
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, &gateway.Error{
			Code:    "invalid_base_url",
			Message: fmt.Sprintf("Ollama base URL %q must use http or https", baseURL),
			Kind:    gateway.KindConfiguration,
		}
	}

	model := config.Model
	if model == "" {
		model = gateway.DefaultOllamaModel
	}

	timeout := config.Timeout
	if timeout == 0 {
		// Local inference is slower than hosted APIs.
		timeout = 60 * time.Second
	}

	return &Client{
		client:  api.NewClient(base, &http.Client{Timeout: timeout}),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Complete sends a chat request to the Ollama daemon. Streaming is disabled,
// so the response callback fires exactly once with the final turn.
func (c *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	chatReq, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	var last api.ChatResponse
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		last = resp
		return nil
	})
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(last), nil
}

func (c *Client) Name() string {
	return "ollama"
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) convertRequest(req gateway.CompletionRequest) (*api.ChatRequest, error) {
	if len(req.Tools) > 0 {
		return nil, &gateway.Error{
			Code:    "tools_not_supported",
			Message: "the Ollama provider does not support tool calling",
			Kind:    gateway.KindValidation,
		}
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: c.convertMessages(req.Messages),
		Stream:   &stream,
	}

	if req.Temperature != nil || req.MaxTokens != nil {
		options := map[string]any{}
		if req.Temperature != nil {
			options["temperature"] = *req.Temperature
		}
		if req.MaxTokens != nil {
			options["num_predict"] = *req.MaxTokens
		}
		chatReq.Options = options
	}

	return chatReq, nil
}

func (c *Client) convertMessages(messages []gateway.Message) []api.Message {
	converted := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		m := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		// Tool-call turns only appear in history replayed from a provider
		// that does support tools; flatten them so the model still sees
		// what happened.
		if len(msg.ToolCalls) > 0 {
			var calls strings.Builder
			calls.WriteString(msg.Content)
			for _, call := range msg.ToolCalls {
				calls.WriteString(fmt.Sprintf("\n[tool call %s(%s)]",
					call.Function.Name, call.Function.Arguments))
			}
			m.Content = calls.String()
		}

		converted = append(converted, m)
	}
	return converted
}

func (c *Client) convertResponse(resp api.ChatResponse) *gateway.Completion {
	finishReason := gateway.FinishReasonStop
	if resp.DoneReason == "length" {
		finishReason = gateway.FinishReasonLength
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &gateway.Completion{
		Message:      gateway.NewAssistantMessage(resp.Message.Content),
		Model:        model,
		FinishReason: finishReason,
		Usage: gateway.TokenUsage{
			InputTokens:  resp.Metrics.PromptEvalCount,
			OutputTokens: resp.Metrics.EvalCount,
			TotalTokens:  resp.Metrics.PromptEvalCount + resp.Metrics.EvalCount,
		},
	}
}

// convertError maps Ollama client errors to the gateway taxonomy. The API
// client surfaces HTTP failures as api.StatusError; anything else is a
// transport problem reaching the local daemon.
func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.ErrorMessage
		if message == "" {
			message = statusErr.Status
		}
		switch statusErr.StatusCode {
		case 429:
			return &gateway.RateLimitError{
				RetryAfter: gateway.DefaultRetryAfter,
				Provider:   "ollama",
				Message:    message,
			}
		case 401, 403:
			return &gateway.AuthError{Reason: message}
		case 404:
			return &gateway.ProviderError{
				Provider:   "ollama",
				Code:       "model_not_found",
				Message:    fmt.Sprintf("model %s: %s", c.model, message),
				StatusCode: statusErr.StatusCode,
			}
		default:
			return &gateway.ProviderError{
				Provider:   "ollama",
				Code:       fmt.Sprintf("ollama_%d", statusErr.StatusCode),
				Message:    message,
				StatusCode: statusErr.StatusCode,
			}
		}
	}

	return &gateway.ProviderError{
		Provider: "ollama",
		Code:     "connection_error",
		Message:  fmt.Sprintf("failed to reach Ollama at %s: %v", c.baseURL, err),
	}
}

// Version reports the daemon version, useful when diagnosing a local setup.
func (c *Client) Version(ctx context.Context) (string, error) {
	version, err := c.client.Version(ctx)
	if err != nil {
		return "", c.convertError(err)
	}
	return version, nil
}

// AvailableModels lists the models pulled into the local daemon.
func (c *Client) AvailableModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, c.convertError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
