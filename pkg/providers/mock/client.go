package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Client is a scriptable gateway.Provider for tests. Queued errors are
// returned before queued completions; when both queues are empty the client
// echoes the last user message so unscripted tests still get a plausible
// turn. All methods are safe for concurrent use.
type Client struct {
	mu sync.Mutex

	model           string
	completions     []gateway.Completion
	completionIndex int
	errs            []error
	errIndex        int
	callLog         []gateway.CompletionRequest
	defaultContent  string
	latency         time.Duration
	closed          bool
}

// NewClient creates a mock provider reporting the given model name.
func NewClient(model string) *Client {
	if model == "" {
		model = "mock-model"
	}
	return &Client{model: model}
}

// Complete records the request and replays the next scripted outcome.
func (m *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	m.mu.Lock()
	m.callLog = append(m.callLog, req)
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.errIndex < len(m.errs) {
		err := m.errs[m.errIndex]
		m.errIndex++
		return nil, err
	}

	if m.completionIndex < len(m.completions) {
		completion := m.completions[m.completionIndex]
		m.completionIndex++
		completion.Message = completion.Message.Clone()
		return &completion, nil
	}

	return m.generateResponse(req), nil
}

func (m *Client) Name() string {
	return "mock"
}

func (m *Client) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Close marks the client closed. Completion calls still work afterwards so
// teardown ordering in tests stays forgiving; Closed reports the flag.
func (m *Client) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *Client) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// generateResponse builds the fallback turn used when nothing is scripted.
// Callers must hold m.mu.
func (m *Client) generateResponse(req gateway.CompletionRequest) *gateway.Completion {
	content := m.defaultContent
	var lastUser string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == gateway.RoleUser {
			lastUser = req.Messages[i].Content
			break
		}
	}
	if content == "" {
		if lastUser != "" {
			content = fmt.Sprintf("Mock reply to: %s", lastUser)
		} else {
			content = "Mock reply."
		}
	}

	return &gateway.Completion{
		Message:      gateway.NewAssistantMessage(content),
		Model:        m.model,
		FinishReason: gateway.FinishReasonStop,
		Usage: gateway.TokenUsage{
			InputTokens:  wordCount(lastUser) + 5,
			OutputTokens: wordCount(content),
			TotalTokens:  wordCount(lastUser) + wordCount(content) + 5,
		},
	}
}

func wordCount(s string) int {
	if s == "" {
		return 0
	}
	return len(strings.Fields(s))
}

// Scripting methods. All return the client for chaining.

// WithCompletion queues a fully specified completion.
func (m *Client) WithCompletion(completion gateway.Completion) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, completion)
	return m
}

// WithResponse queues a plain text turn.
func (m *Client) WithResponse(content string) *Client {
	return m.WithCompletion(gateway.Completion{
		Message:      gateway.NewAssistantMessage(content),
		Model:        m.model,
		FinishReason: gateway.FinishReasonStop,
		Usage: gateway.TokenUsage{
			InputTokens:  10,
			OutputTokens: wordCount(content),
			TotalTokens:  10 + wordCount(content),
		},
	})
}

// WithUsage queues a text turn with explicit token usage, for tests that
// assert on cost computation.
func (m *Client) WithUsage(content string, usage gateway.TokenUsage) *Client {
	return m.WithCompletion(gateway.Completion{
		Message:      gateway.NewAssistantMessage(content),
		Model:        m.model,
		FinishReason: gateway.FinishReasonStop,
		Usage:        usage,
	})
}

// WithToolCall queues a turn that asks the caller to execute the named tool.
func (m *Client) WithToolCall(toolName string, args map[string]interface{}) *Client {
	arguments := "{}"
	if len(args) > 0 {
		if data, err := json.Marshal(args); err == nil {
			arguments = string(data)
		}
	}

	call := gateway.ToolCall{
		ID:   fmt.Sprintf("call-%s-%d", toolName, time.Now().UnixNano()),
		Type: "function",
		Function: gateway.ToolCallFunction{
			Name:      toolName,
			Arguments: arguments,
		},
	}
	return m.WithCompletion(gateway.Completion{
		Message:      gateway.NewAssistantMessage("", call),
		Model:        m.model,
		FinishReason: gateway.FinishReasonToolCalls,
		Usage: gateway.TokenUsage{
			InputTokens:  10,
			OutputTokens: 5,
			TotalTokens:  15,
		},
	})
}

// WithError queues an error.
func (m *Client) WithError(err error) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	return m
}

// WithDefaultResponse sets the text returned when the queues run dry.
func (m *Client) WithDefaultResponse(content string) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultContent = content
	return m
}

// WithLatency makes each Complete call wait before answering, for timeout
// and cancellation tests.
func (m *Client) WithLatency(d time.Duration) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
	return m
}

// Inspection methods.

// CallLog returns a copy of every request received.
func (m *Client) CallLog() []gateway.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := make([]gateway.CompletionRequest, len(m.callLog))
	copy(log, m.callLog)
	return log
}

// LastCall returns the most recent request, or nil when none was made.
func (m *Client) LastCall() *gateway.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.callLog) == 0 {
		return nil
	}
	last := m.callLog[len(m.callLog)-1]
	return &last
}

// CallCount returns how many Complete calls were made.
func (m *Client) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callLog)
}

// Reset clears queues, the call log, and the closed flag.
func (m *Client) Reset() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = nil
	m.completionIndex = 0
	m.errs = nil
	m.errIndex = 0
	m.callLog = nil
	m.closed = false
	return m
}
