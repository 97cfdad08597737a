package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// safeIntToInt32 safely converts int to int32
func safeIntToInt32(val int) int32 {
	if val > 2147483647 {
		return 2147483647
	}
	if val < -2147483648 {
		return -2147483648
	}
	return int32(val)
}

// Client implements the gateway.Provider interface for Google Gemini
type Client struct {
	model string
	genai *genai.Client
}

// NewClient creates a new Gemini provider adapter using the official Google
// Generative AI library.
func NewClient(config gateway.ProviderConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &gateway.Error{
			Code:    "missing_api_key",
			Message: "API key is required for Gemini",
			Kind:    gateway.KindConfiguration,
		}
	}

	model := config.Model
	if model == "" {
		model = gateway.DefaultGeminiModel
	}

	genaiConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.Timeout > 0 {
		timeout := config.Timeout
		genaiConfig.HTTPOptions.Timeout = &timeout
	}

	genaiClient, err := genai.NewClient(context.Background(), genaiConfig)
	if err != nil {
		return nil, &gateway.Error{
			Code:    "client_creation_error",
			Message: fmt.Sprintf("Failed to create genai client: %v", err),
			Kind:    gateway.KindConfiguration,
		}
	}

	return &Client{
		model: model,
		genai: genaiClient,
	}, nil
}

// Complete performs a non-streaming content generation request.
func (c *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	contents, systemInstruction, err := c.convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = safeIntToInt32(*req.MaxTokens)
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		}
	}
	c.applyTools(config, req)

	// Chats carry history; all but the last turn seed the session and the
	// last turn is the message actually sent.
	var history []*genai.Content
	if len(contents) > 1 {
		history = contents[:len(contents)-1]
	}

	chat, err := c.genai.Chats.Create(ctx, c.model, config, history)
	if err != nil {
		return nil, c.convertError(err)
	}

	var parts []genai.Part
	if len(contents) > 0 {
		lastContent := contents[len(contents)-1]
		parts = make([]genai.Part, len(lastContent.Parts))
		for i, part := range lastContent.Parts {
			parts[i] = *part
		}
	}

	response, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(response)
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "gemini"
}

// Model returns the configured model
func (c *Client) Model() string {
	return c.model
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	// The genai client doesn't provide a Close method
	return nil
}

// applyTools wires tool declarations and tool choice into the generation
// config. Parameter schemas are passed through as raw JSON schema.
func (c *Client) applyTools(config *genai.GenerateContentConfig, req gateway.CompletionRequest) {
	if len(req.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:                 tool.Function.Name,
				Description:          tool.Function.Description,
				ParametersJsonSchema: tool.Function.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	switch req.ToolChoice.Mode {
	case gateway.ToolChoiceModeAuto:
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	case gateway.ToolChoiceModeNone:
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone},
		}
	case gateway.ToolChoiceModeRequired:
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny},
		}
	case gateway.ToolChoiceModeFunction:
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{req.ToolChoice.Name},
			},
		}
	}
}

// convertMessages converts gateway messages to genai Content format. System
// turns are extracted into a system instruction rather than sent as content.
func (c *Client) convertMessages(messages []gateway.Message) ([]*genai.Content, string, error) {
	var contents []*genai.Content
	var systemParts []string

	for _, msg := range messages {
		if msg.Role == gateway.RoleSystem {
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == gateway.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		if msg.Role == gateway.RoleTool {
			parts = append(parts, &genai.Part{FunctionResponse: c.convertToolResult(msg)})
		} else {
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: parseArguments(tc.Function.Arguments),
				}})
			}
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}

	if len(contents) == 0 {
		return nil, "", &gateway.Error{
			Code:       "invalid_request",
			Message:    "No valid messages provided",
			Kind:       gateway.KindValidation,
			StatusCode: http.StatusBadRequest,
		}
	}

	return contents, strings.Join(systemParts, "\n\n"), nil
}

// convertToolResult maps a tool-role message to a genai function response.
// The result payload must be an object, so bare strings are wrapped.
func (c *Client) convertToolResult(msg gateway.Message) *genai.FunctionResponse {
	response := map[string]any{}
	if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
		response = map[string]any{"result": msg.Content}
	}
	return &genai.FunctionResponse{
		ID:       msg.ToolCallID,
		Name:     msg.Name,
		Response: response,
	}
}

// parseArguments decodes a JSON argument string, tolerating invalid input
func parseArguments(arguments string) map[string]any {
	args := map[string]any{}
	if arguments != "" {
		_ = json.Unmarshal([]byte(arguments), &args)
	}
	return args
}

// convertResponse converts a genai response to a Completion
func (c *Client) convertResponse(resp *genai.GenerateContentResponse) (*gateway.Completion, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &gateway.ProviderError{
			Provider: "gemini",
			Code:     "empty_response",
			Message:  "response contained no candidates",
		}
	}

	candidate := resp.Candidates[0]

	var text strings.Builder
	var toolCalls []gateway.ToolCall
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			arguments, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				arguments = []byte("{}")
			}
			toolCalls = append(toolCalls, gateway.ToolCall{
				ID:   id,
				Type: "function",
				Function: gateway.ToolCallFunction{
					Name:      part.FunctionCall.Name,
					Arguments: string(arguments),
				},
			})
		}
	}

	finishReason := gateway.FinishReasonStop
	switch {
	case len(toolCalls) > 0:
		finishReason = gateway.FinishReasonToolCalls
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		finishReason = gateway.FinishReasonLength
	case strings.Contains(string(candidate.FinishReason), "SAFETY"):
		finishReason = gateway.FinishReasonContentFilter
	}

	message := gateway.NewAssistantMessage(text.String(), toolCalls...)

	completion := &gateway.Completion{
		Message:      message,
		Model:        c.model,
		FinishReason: finishReason,
	}
	if resp.UsageMetadata != nil {
		completion.Usage = gateway.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			CachedTokens: int(resp.UsageMetadata.CachedContentTokenCount),
		}
	}

	return completion, nil
}

// convertError maps genai errors to the gateway taxonomy
func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &gateway.RateLimitError{
				RetryAfter: gateway.DefaultRetryAfter,
				Provider:   "gemini",
				Message:    apiErr.Message,
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &gateway.AuthError{Reason: apiErr.Message}
		default:
			return &gateway.ProviderError{
				Provider:   "gemini",
				Code:       apiErr.Status,
				Message:    apiErr.Message,
				StatusCode: apiErr.Code,
			}
		}
	}

	// Fall back to classifying by message content
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "API key") ||
		strings.Contains(errMsg, "authentication") ||
		strings.Contains(errMsg, "unauthorized") ||
		strings.Contains(errMsg, "401"):
		return &gateway.AuthError{Reason: errMsg}
	case strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "quota") ||
		strings.Contains(errMsg, "429"):
		return &gateway.RateLimitError{
			RetryAfter: gateway.DefaultRetryAfter,
			Provider:   "gemini",
			Message:    errMsg,
		}
	default:
		return &gateway.ProviderError{
			Provider: "gemini",
			Code:     "api_error",
			Message:  errMsg,
		}
	}
}
