// Package gatewaytest provides a scriptable gateway.Gateway double for
// agent-facing tests. Queue the responses a scenario needs, run the code
// under test against the mock, then assert on the recorded calls.
//
//	gw := gatewaytest.New().
//		WithQueuedResponse(gatewaytest.Response("Hello, agent!", 0.001))
//
//	resp, err := agent.Run(ctx, gw)
//
//	require.NoError(t, err)
//	assert.Equal(t, 1, gw.InvokeCallCount())
package gatewaytest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// ErrNoQueuedResponses is returned by InvokeLLM when the response queue is
// empty and no default response is configured. A test hitting it made more
// invocations than it scripted.
var ErrNoQueuedResponses = errors.New("gatewaytest: no queued responses")

// FileURLRequest records one RequestFileURL call.
type FileURLRequest struct {
	FilePath string
	Method   gateway.URLMethod
}

// MockGateway is a scriptable gateway.Gateway. InvokeLLM replays queued
// errors first, then queued responses in FIFO order, then the default
// response; the cost of every replayed response accumulates into
// SessionCost exactly as a real gateway's ledger would. Every invoke
// request, persisted batch, and file-URL request is recorded for assertion.
//
// Safe for concurrent use.
type MockGateway struct {
	mu sync.Mutex

	queue       []*gateway.LLMResponse
	queueIndex  int
	errs        []error
	errIndex    int
	defaultResp *gateway.LLMResponse

	invokeCalls  []gateway.InvokeRequest
	persisted    [][]gateway.Message
	fileRequests []FileURLRequest

	ledger *gateway.CostLedger
	closed bool
}

// New creates an empty mock gateway. With no scripting, InvokeLLM returns
// ErrNoQueuedResponses.
func New() *MockGateway {
	return &MockGateway{ledger: gateway.NewCostLedger(0)}
}

// Response builds a standard single-turn response for queueing: assistant
// message, stop finish reason, the given cost.
func Response(content string, costUSD float64) *gateway.LLMResponse {
	tokens := len(content)/4 + 1
	return &gateway.LLMResponse{
		Message:      gateway.NewAssistantMessage(content),
		CostUSD:      costUSD,
		Model:        "mock-model",
		FinishReason: gateway.FinishReasonStop,
		Usage: gateway.TokenUsage{
			OutputTokens: tokens,
			TotalTokens:  tokens,
		},
	}
}

// InvokeLLM records the request and replays the next scripted outcome.
func (m *MockGateway) InvokeLLM(_ context.Context, req gateway.InvokeRequest) (*gateway.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := req
	recorded.Messages = gateway.CloneMessages(req.Messages)
	m.invokeCalls = append(m.invokeCalls, recorded)

	if m.errIndex < len(m.errs) {
		err := m.errs[m.errIndex]
		m.errIndex++
		return nil, err
	}

	var resp *gateway.LLMResponse
	switch {
	case m.queueIndex < len(m.queue):
		resp = m.queue[m.queueIndex]
		m.queueIndex++
	case m.defaultResp != nil:
		resp = m.defaultResp
	default:
		return nil, ErrNoQueuedResponses
	}

	m.ledger.Add(resp.CostUSD)
	return resp.Clone(), nil
}

// PersistMessages records the batch.
func (m *MockGateway) PersistMessages(_ context.Context, messages []gateway.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = append(m.persisted, gateway.CloneMessages(messages))
	return nil
}

// RequestFileURL records the request and returns a synthetic grant valid for
// one hour.
func (m *MockGateway) RequestFileURL(_ context.Context, filePath string, method gateway.URLMethod) (*gateway.PresignedURL, error) {
	if method != gateway.URLMethodPut && method != gateway.URLMethodGet {
		return nil, &gateway.Error{
			Code:    "invalid_url_method",
			Message: "method must be PUT or GET, got " + string(method),
			Kind:    gateway.KindValidation,
		}
	}

	m.mu.Lock()
	m.fileRequests = append(m.fileRequests, FileURLRequest{FilePath: filePath, Method: method})
	m.mu.Unlock()

	return &gateway.PresignedURL{
		URL:       "mock://" + filePath,
		Method:    method,
		ExpiresAt: time.Now().Add(time.Hour),
		FilePath:  filePath,
	}, nil
}

// SessionCost returns the accumulated cost of every replayed response.
func (m *MockGateway) SessionCost(context.Context) (float64, error) {
	return m.ledger.Consumed(), nil
}

// Close marks the gateway closed. Calls keep working afterwards so teardown
// ordering in tests stays forgiving.
func (m *MockGateway) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockGateway) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Scripting. The With* builders return the gateway for chaining; the Queue*
// mutators script mid-test.

// WithQueuedResponse appends one response to the FIFO queue.
func (m *MockGateway) WithQueuedResponse(resp *gateway.LLMResponse) *MockGateway {
	m.QueueResponse(resp)
	return m
}

// WithQueuedResponses appends responses to the FIFO queue in order.
func (m *MockGateway) WithQueuedResponses(resps ...*gateway.LLMResponse) *MockGateway {
	m.QueueResponses(resps...)
	return m
}

// WithDefaultResponse sets the response replayed when the queue runs dry.
func (m *MockGateway) WithDefaultResponse(resp *gateway.LLMResponse) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = resp
	return m
}

// WithQueuedError appends an error. Queued errors replay before queued
// responses.
func (m *MockGateway) WithQueuedError(err error) *MockGateway {
	m.QueueError(err)
	return m
}

// QueueResponse appends one response to the FIFO queue.
func (m *MockGateway) QueueResponse(resp *gateway.LLMResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// QueueResponses appends responses to the FIFO queue in order.
func (m *MockGateway) QueueResponses(resps ...*gateway.LLMResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// QueueError appends an error to replay before any queued response.
func (m *MockGateway) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

// Reset clears queues, recorded calls, accumulated cost, and the closed
// flag. The default response is retained.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.queueIndex = 0
	m.errs = nil
	m.errIndex = 0
	m.invokeCalls = nil
	m.persisted = nil
	m.fileRequests = nil
	m.ledger = gateway.NewCostLedger(0)
	m.closed = false
}

// Inspection.

// InvokeCallCount returns how many InvokeLLM calls were made.
func (m *MockGateway) InvokeCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invokeCalls)
}

// PersistCallCount returns how many PersistMessages calls were made.
func (m *MockGateway) PersistCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persisted)
}

// FileURLCallCount returns how many RequestFileURL calls were made.
func (m *MockGateway) FileURLCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fileRequests)
}

// TotalMessagesSent returns the total number of messages across all
// InvokeLLM requests.
func (m *MockGateway) TotalMessagesSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, call := range m.invokeCalls {
		total += len(call.Messages)
	}
	return total
}

// LastRequest returns the most recent InvokeLLM request, nil when none was
// made.
func (m *MockGateway) LastRequest() *gateway.InvokeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.invokeCalls) == 0 {
		return nil
	}
	last := m.invokeCalls[len(m.invokeCalls)-1]
	return &last
}

// InvokeCalls returns a copy of every InvokeLLM request in order.
func (m *MockGateway) InvokeCalls() []gateway.InvokeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]gateway.InvokeRequest, len(m.invokeCalls))
	copy(calls, m.invokeCalls)
	return calls
}

// PersistedMessages returns every persisted message flattened in persist
// order.
func (m *MockGateway) PersistedMessages() []gateway.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []gateway.Message
	for _, batch := range m.persisted {
		all = append(all, batch...)
	}
	return all
}

// FileRequests returns a copy of every recorded file-URL request.
func (m *MockGateway) FileRequests() []FileURLRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]FileURLRequest, len(m.fileRequests))
	copy(reqs, m.fileRequests)
	return reqs
}

var _ gateway.Gateway = (*MockGateway)(nil)
