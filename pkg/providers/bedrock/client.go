package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Client implements gateway.Provider for AWS Bedrock.
//
// Requests go through the InvokeModel API with a model-family specific JSON
// payload. Anthropic models use the Claude messages format and support tool
// calling; Amazon Titan and Meta Llama models use their native text formats
// and reject tool declarations.
type Client struct {
	bedrockClient        *bedrock.Client
	bedrockRuntimeClient *bedrockruntime.Client
	model                string
	region               string
}

// NewClient creates a Bedrock provider from the given configuration.
//
// Credentials are resolved through the default AWS chain (environment,
// shared config, instance role). The region comes from Extra["region"] and
// defaults to us-east-1. Both the control-plane and runtime endpoints can be
// overridden for local stacks via Extra or BaseURL.
func NewClient(config gateway.ProviderConfig) (*Client, error) {
	if config.Model == "" {
		return nil, &gateway.Error{
			Code:    "missing_model",
			Message: "a Bedrock model ID is required",
			Kind:    gateway.KindConfiguration,
		}
	}

	region := config.Extra["region"]
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, &gateway.Error{
			Code:    "aws_config_error",
			Message: fmt.Sprintf("failed to load AWS configuration: %v", err),
			Kind:    gateway.KindConfiguration,
		}
	}

	bedrockEndpoint := config.Extra["bedrock_endpoint"]
	if bedrockEndpoint == "" {
		bedrockEndpoint = config.BaseURL
	}
	runtimeEndpoint := config.Extra["bedrock_runtime_endpoint"]
	if runtimeEndpoint == "" {
		runtimeEndpoint = config.BaseURL
	}

	bedrockClient := bedrock.NewFromConfig(awsCfg, func(o *bedrock.Options) {
		if bedrockEndpoint != "" {
			o.BaseEndpoint = aws.String(bedrockEndpoint)
		}
	})
	runtimeClient := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if runtimeEndpoint != "" {
			o.BaseEndpoint = aws.String(runtimeEndpoint)
		}
	})

	return &Client{
		bedrockClient:        bedrockClient,
		bedrockRuntimeClient: runtimeClient,
		model:                config.Model,
		region:               region,
	}, nil
}

// Complete sends a completion request to Bedrock and converts the response.
func (c *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	payload, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	output, err := c.bedrockRuntimeClient.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(output.Body)
}

func (c *Client) Name() string {
	return "bedrock"
}

func (c *Client) Model() string {
	return c.model
}

// Close releases resources. The AWS SDK clients hold no connections that
// need explicit shutdown.
func (c *Client) Close() error {
	return nil
}

// AvailableModels lists the foundation model IDs offered in the configured
// region.
func (c *Client) AvailableModels(ctx context.Context) ([]string, error) {
	resp, err := c.bedrockClient.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, c.convertError(err)
	}

	models := make([]string, 0, len(resp.ModelSummaries))
	for _, summary := range resp.ModelSummaries {
		models = append(models, aws.ToString(summary.ModelId))
	}
	return models, nil
}

// convertRequest builds the InvokeModel JSON payload for the model family.
func (c *Client) convertRequest(req gateway.CompletionRequest) ([]byte, error) {
	switch {
	case c.isClaudeModel():
		return c.convertClaudeRequest(req)
	case c.isTitanModel():
		return c.convertTitanRequest(req)
	case c.isLlamaModel():
		return c.convertLlamaRequest(req)
	default:
		// The messages format covers the majority of chat-capable
		// Bedrock models, so unknown families get it too.
		return c.convertClaudeRequest(req)
	}
}

func (c *Client) isClaudeModel() bool {
	model := strings.ToLower(c.model)
	return strings.Contains(model, "claude") || strings.Contains(model, "anthropic")
}

func (c *Client) isTitanModel() bool {
	model := strings.ToLower(c.model)
	return strings.Contains(model, "titan") || strings.Contains(model, "amazon")
}

func (c *Client) isLlamaModel() bool {
	model := strings.ToLower(c.model)
	return strings.Contains(model, "llama") || strings.Contains(model, "meta")
}

// convertClaudeRequest builds an Anthropic messages-format payload. System
// messages are lifted into the top-level "system" field, and tool calls and
// tool results become tool_use/tool_result content blocks.
func (c *Client) convertClaudeRequest(req gateway.CompletionRequest) ([]byte, error) {
	maxTokens := 1000
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	payload := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}

	var system []string
	messages := make([]map[string]interface{}, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case gateway.RoleSystem:
			system = append(system, msg.Content)

		case gateway.RoleTool:
			messages = append(messages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type":        "tool_result",
						"tool_use_id": msg.ToolCallID,
						"content":     msg.Content,
					},
				},
			})

		case gateway.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				content := make([]map[string]interface{}, 0, len(msg.ToolCalls)+1)
				if msg.Content != "" {
					content = append(content, map[string]interface{}{
						"type": "text",
						"text": msg.Content,
					})
				}
				for _, call := range msg.ToolCalls {
					content = append(content, map[string]interface{}{
						"type":  "tool_use",
						"id":    call.ID,
						"name":  call.Function.Name,
						"input": parseToolInput(call.Function.Arguments),
					})
				}
				messages = append(messages, map[string]interface{}{
					"role":    "assistant",
					"content": content,
				})
				continue
			}
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": msg.Content,
			})

		default:
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": msg.Content,
			})
		}
	}

	if len(messages) == 0 {
		return nil, &gateway.Error{
			Code:    "no_messages",
			Message: "at least one non-system message is required",
			Kind:    gateway.KindValidation,
		}
	}

	payload["messages"] = messages
	if len(system) > 0 {
		payload["system"] = strings.Join(system, "\n\n")
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"name":         tool.Function.Name,
				"description":  tool.Function.Description,
				"input_schema": tool.Function.Parameters,
			})
		}
		payload["tools"] = tools

		if choice := convertToolChoice(req.ToolChoice); choice != nil {
			payload["tool_choice"] = choice
		}
	}

	return json.Marshal(payload)
}

func convertToolChoice(choice gateway.ToolChoice) map[string]interface{} {
	switch choice.Mode {
	case gateway.ToolChoiceModeRequired:
		return map[string]interface{}{"type": "any"}
	case gateway.ToolChoiceModeFunction:
		return map[string]interface{}{
			"type": "tool",
			"name": choice.Name,
		}
	default:
		// The messages API has no "none" mode; omitting the field keeps
		// the declarations visible and lets the model decide.
		return nil
	}
}

// parseToolInput decodes a tool-call arguments string into an object for the
// tool_use block. Claude requires input to be a JSON object, not a string.
func parseToolInput(arguments string) map[string]interface{} {
	if arguments == "" {
		return map[string]interface{}{}
	}
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return map[string]interface{}{"input": arguments}
	}
	return input
}

// convertTitanRequest builds an Amazon Titan text-generation payload. Titan
// has no chat or tool support, so the conversation is flattened into a
// single prompt.
func (c *Client) convertTitanRequest(req gateway.CompletionRequest) ([]byte, error) {
	if len(req.Tools) > 0 {
		return nil, c.toolsNotSupportedError()
	}

	textConfig := map[string]interface{}{
		"maxTokenCount": 1000,
	}
	if req.MaxTokens != nil {
		textConfig["maxTokenCount"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		textConfig["temperature"] = *req.Temperature
	}

	return json.Marshal(map[string]interface{}{
		"inputText":            flattenMessages(req.Messages),
		"textGenerationConfig": textConfig,
	})
}

// convertLlamaRequest builds a Meta Llama payload with the conversation
// flattened into a prompt.
func (c *Client) convertLlamaRequest(req gateway.CompletionRequest) ([]byte, error) {
	if len(req.Tools) > 0 {
		return nil, c.toolsNotSupportedError()
	}

	payload := map[string]interface{}{
		"prompt": flattenMessages(req.Messages),
	}
	if req.MaxTokens != nil {
		payload["max_gen_len"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}

	return json.Marshal(payload)
}

func (c *Client) toolsNotSupportedError() error {
	return &gateway.Error{
		Code:    "tools_not_supported",
		Message: fmt.Sprintf("model %s does not support tool calling", c.model),
		Kind:    gateway.KindValidation,
	}
}

func flattenMessages(messages []gateway.Message) string {
	var prompt strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case gateway.RoleSystem:
			prompt.WriteString("System: ")
		case gateway.RoleAssistant:
			prompt.WriteString("Assistant: ")
		default:
			prompt.WriteString("User: ")
		}
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Assistant:")
	return prompt.String()
}

// claudeResponse is the Anthropic messages-format response body.
type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      claudeUsage     `json:"usage"`
}

type claudeContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// titanResponse is the Amazon Titan text-generation response body.
type titanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount       int    `json:"tokenCount"`
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
	} `json:"results"`
}

// llamaResponse is the Meta Llama response body.
type llamaResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
	StopReason           string `json:"stop_reason"`
}

func (c *Client) convertResponse(body []byte) (*gateway.Completion, error) {
	switch {
	case c.isClaudeModel():
		return c.convertClaudeResponse(body)
	case c.isTitanModel():
		return c.convertTitanResponse(body)
	case c.isLlamaModel():
		return c.convertLlamaResponse(body)
	default:
		return c.convertClaudeResponse(body)
	}
}

func (c *Client) convertClaudeResponse(body []byte) (*gateway.Completion, error) {
	var resp claudeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.malformedResponseError(err)
	}

	var text strings.Builder
	var toolCalls []gateway.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			arguments := "{}"
			if len(block.Input) > 0 {
				arguments = string(block.Input)
			}
			toolCalls = append(toolCalls, gateway.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: gateway.ToolCallFunction{
					Name:      block.Name,
					Arguments: arguments,
				},
			})
		}
	}

	return &gateway.Completion{
		Message:      gateway.NewAssistantMessage(text.String(), toolCalls...),
		Model:        c.model,
		FinishReason: convertClaudeStopReason(resp.StopReason, len(toolCalls) > 0),
		Usage: gateway.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func convertClaudeStopReason(reason string, hasToolCalls bool) gateway.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return gateway.FinishReasonStop
	case "max_tokens":
		return gateway.FinishReasonLength
	case "tool_use":
		return gateway.FinishReasonToolCalls
	default:
		if hasToolCalls {
			return gateway.FinishReasonToolCalls
		}
		return gateway.FinishReasonStop
	}
}

func (c *Client) convertTitanResponse(body []byte) (*gateway.Completion, error) {
	var resp titanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.malformedResponseError(err)
	}
	if len(resp.Results) == 0 {
		return nil, &gateway.ProviderError{
			Provider: "bedrock",
			Code:     "empty_response",
			Message:  "response contained no results",
		}
	}

	result := resp.Results[0]
	finishReason := gateway.FinishReasonStop
	if result.CompletionReason == "LENGTH" {
		finishReason = gateway.FinishReasonLength
	}

	return &gateway.Completion{
		Message:      gateway.NewAssistantMessage(result.OutputText),
		Model:        c.model,
		FinishReason: finishReason,
		Usage: gateway.TokenUsage{
			InputTokens:  resp.InputTextTokenCount,
			OutputTokens: result.TokenCount,
			TotalTokens:  resp.InputTextTokenCount + result.TokenCount,
		},
	}, nil
}

func (c *Client) convertLlamaResponse(body []byte) (*gateway.Completion, error) {
	var resp llamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.malformedResponseError(err)
	}

	finishReason := gateway.FinishReasonStop
	if resp.StopReason == "length" {
		finishReason = gateway.FinishReasonLength
	}

	return &gateway.Completion{
		Message:      gateway.NewAssistantMessage(resp.Generation),
		Model:        c.model,
		FinishReason: finishReason,
		Usage: gateway.TokenUsage{
			InputTokens:  resp.PromptTokenCount,
			OutputTokens: resp.GenerationTokenCount,
			TotalTokens:  resp.PromptTokenCount + resp.GenerationTokenCount,
		},
	}, nil
}

func (c *Client) malformedResponseError(err error) error {
	return &gateway.ProviderError{
		Provider: "bedrock",
		Code:     "malformed_response",
		Message:  fmt.Sprintf("failed to decode response: %v", err),
	}
}

// convertError maps AWS SDK errors to the gateway error types. Classification
// prefers the smithy error code; string matching remains as a fallback for
// wrapped transport errors that lose the typed code.
func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
			return &gateway.RateLimitError{
				RetryAfter: gateway.DefaultRetryAfter,
				Provider:   "bedrock",
				Message:    apiErr.ErrorMessage(),
			}
		case "AccessDeniedException", "UnrecognizedClientException", "UnauthorizedOperation", "ExpiredTokenException":
			return &gateway.AuthError{Reason: apiErr.ErrorMessage()}
		case "ResourceNotFoundException":
			return &gateway.ProviderError{
				Provider:   "bedrock",
				Code:       "model_not_found",
				Message:    fmt.Sprintf("model %s not found: %s", c.model, apiErr.ErrorMessage()),
				StatusCode: 404,
			}
		case "ValidationException":
			if strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "model") {
				return &gateway.ProviderError{
					Provider:   "bedrock",
					Code:       "model_not_found",
					Message:    apiErr.ErrorMessage(),
					StatusCode: 404,
				}
			}
			return &gateway.ProviderError{
				Provider:   "bedrock",
				Code:       "validation_error",
				Message:    apiErr.ErrorMessage(),
				StatusCode: 400,
			}
		case "ModelTimeoutException":
			return &gateway.ProviderError{
				Provider:   "bedrock",
				Code:       "model_timeout",
				Message:    apiErr.ErrorMessage(),
				StatusCode: 408,
			}
		default:
			return &gateway.ProviderError{
				Provider: "bedrock",
				Code:     apiErr.ErrorCode(),
				Message:  apiErr.ErrorMessage(),
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "throttling") || strings.Contains(errStr, "too many requests"):
		return &gateway.RateLimitError{
			RetryAfter: gateway.DefaultRetryAfter,
			Provider:   "bedrock",
			Message:    err.Error(),
		}
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "credentials"):
		return &gateway.AuthError{Reason: err.Error()}
	default:
		return &gateway.ProviderError{
			Provider: "bedrock",
			Code:     "connection_error",
			Message:  err.Error(),
		}
	}
}
