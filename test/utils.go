// Cross-package integration tests: gateways, stores, providers, and the test
// double wired together the way an agent process uses them. A fakeBroker
// stands in for the control plane so everything runs hermetically.
package test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
	"github.com/halcyon-ai/go-gateway/pkg/gateways/controlplane"
)

const (
	testToken   = "integration-token"
	testSession = "integration-session"
)

// brokerReply scripts one successful invocation result.
type brokerReply struct {
	content   string
	toolCalls []gateway.ToolCall
}

// brokerOptions configures a fakeBroker before it starts serving.
type brokerOptions struct {
	capUSD         float64
	costPerCall    float64 // default 0.001
	replies        []brokerReply
	rateLimitFirst bool // respond 429 to the first invocation attempt
}

// fakeBroker is an in-memory control plane. It owns the authoritative
// ledger (accumulated in micro-USD, like the SDK mirror), enforces the cap
// before billing since it knows its own pricing, and deduplicates persisted
// messages per session on message identity.
type fakeBroker struct {
	server *httptest.Server

	capMicros  int64
	costMicros int64
	replies    []brokerReply
	limitFirst bool

	mu             sync.Mutex
	consumedMicros int64
	attempts       int
	billed         int
	order          map[string][]gateway.Message
	seen           map[string]map[string]bool
}

func newFakeBroker(t *testing.T, opts brokerOptions) *fakeBroker {
	t.Helper()

	costPerCall := opts.costPerCall
	if costPerCall <= 0 {
		costPerCall = 0.001
	}
	b := &fakeBroker{
		capMicros:  int64(math.Round(opts.capUSD * 1e6)),
		costMicros: int64(math.Round(costPerCall * 1e6)),
		replies:    opts.replies,
		limitFirst: opts.rateLimitFirst,
		order:      map[string][]gateway.Message{},
		seen:       map[string]map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/llm/invoke", b.handleInvoke)
	mux.HandleFunc("/messages/persist", b.handlePersist)
	mux.HandleFunc("/files/presigned-urls", b.handleFileURLs)
	mux.HandleFunc("/sessions/cost", b.handleCost)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// gateway builds a control-plane gateway bound to this broker.
func (b *fakeBroker) gateway(t *testing.T, capUSD float64) *controlplane.Gateway {
	t.Helper()

	gw, err := controlplane.New(gateway.Config{
		SessionToken:    testToken,
		ControlPlaneURL: b.server.URL,
		SessionID:       testSession,
		CostCapUSD:      capUSD,
		MaxRetries:      2,
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func (b *fakeBroker) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	var payload struct {
		NewMessages []gateway.Message `json:"new_messages"`
		SessionID   string            `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if len(payload.NewMessages) == 0 {
		writeBrokerError(w, http.StatusBadRequest, "empty_messages", "no new messages", nil)
		return
	}

	b.mu.Lock()
	b.attempts++
	if b.limitFirst && b.attempts == 1 {
		b.mu.Unlock()
		writeBrokerError(w, http.StatusTooManyRequests, "rate_limited", "throttled",
			map[string]interface{}{"retry_after_seconds": 0.05})
		return
	}
	// The broker knows its pricing, so it rejects before billing: a
	// rejected call leaves the ledger untouched.
	if b.capMicros > 0 && b.consumedMicros+b.costMicros > b.capMicros {
		capUSD := float64(b.capMicros) / 1e6
		consumedUSD := float64(b.consumedMicros) / 1e6
		b.mu.Unlock()
		writeBrokerError(w, http.StatusPaymentRequired, "cost_cap_exceeded", "session cost cap exceeded",
			map[string]interface{}{"cap_usd": capUSD, "consumed_usd": consumedUSD})
		return
	}
	b.consumedMicros += b.costMicros
	idx := b.billed
	b.billed++
	reply := brokerReply{content: "ack"}
	if idx < len(b.replies) {
		reply = b.replies[idx]
	}
	cost := float64(b.costMicros) / 1e6
	b.mu.Unlock()

	result := map[string]interface{}{
		"message":       map[string]string{"role": "assistant", "content": reply.content},
		"usage":         map[string]int{"input_tokens": 40, "output_tokens": 12, "total_tokens": 52},
		"cost_usd":      cost,
		"model":         "broker-model",
		"finish_reason": "stop",
	}
	if len(reply.toolCalls) > 0 {
		result["tool_calls"] = reply.toolCalls
		result["finish_reason"] = "tool_calls"
	}
	writeBrokerJSON(w, http.StatusOK, result)
}

func (b *fakeBroker) handlePersist(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	var payload struct {
		Messages  []gateway.Message `json:"messages"`
		SessionID string            `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen[payload.SessionID] == nil {
		b.seen[payload.SessionID] = map[string]bool{}
	}
	for _, m := range payload.Messages {
		if m.ID == "" {
			writeBrokerError(w, http.StatusBadRequest, "missing_message_id", "messages must carry identity", nil)
			return
		}
		if b.seen[payload.SessionID][m.ID] {
			continue
		}
		b.seen[payload.SessionID][m.ID] = true
		b.order[payload.SessionID] = append(b.order[payload.SessionID], m)
	}
	writeBrokerJSON(w, http.StatusOK, map[string]int{"stored": len(b.order[payload.SessionID])})
}

func (b *fakeBroker) handleFileURLs(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	var payload struct {
		FilePath  string `json:"file_path"`
		Method    string `json:"method"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	writeBrokerJSON(w, http.StatusOK, map[string]interface{}{
		"url":        "https://files.test/" + payload.SessionID + payload.FilePath,
		"method":     payload.Method,
		"expires_at": time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339),
		"file_path":  payload.FilePath,
	})
}

func (b *fakeBroker) handleCost(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	b.mu.Lock()
	consumed := float64(b.consumedMicros) / 1e6
	b.mu.Unlock()
	writeBrokerJSON(w, http.StatusOK, map[string]float64{"cost_usd": consumed})
}

func (b *fakeBroker) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		writeBrokerError(w, http.StatusUnauthorized, "authentication_failed", "bad session token", nil)
		return false
	}
	return true
}

// consumed returns the broker-side session total in USD.
func (b *fakeBroker) consumed() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.consumedMicros) / 1e6
}

// billedCalls returns how many invocations the broker actually billed.
func (b *fakeBroker) billedCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.billed
}

// invokeAttempts returns how many invocation requests arrived, including
// rejected ones.
func (b *fakeBroker) invokeAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// storedMessages returns the broker's persisted history for a session, in
// first-persisted order.
func (b *fakeBroker) storedMessages(sessionID string) []gateway.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gateway.Message(nil), b.order[sessionID]...)
}

func writeBrokerJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBrokerError(w http.ResponseWriter, status int, code, message string, extra map[string]interface{}) {
	errBody := map[string]interface{}{"code": code, "message": message}
	for k, v := range extra {
		errBody[k] = v
	}
	writeBrokerJSON(w, status, map[string]interface{}{"error": errBody})
}

// runAgentTurn is the minimal agent loop every Gateway variant must support:
// ask a question, persist both turns, report the session total.
func runAgentTurn(ctx context.Context, gw gateway.Gateway, question string) (string, float64, error) {
	q := gateway.NewUserMessage(question)
	resp, err := gw.InvokeLLM(ctx, gateway.InvokeRequest{Messages: []gateway.Message{q}})
	if err != nil {
		return "", 0, err
	}
	if err := gw.PersistMessages(ctx, []gateway.Message{q, resp.Message}); err != nil {
		return "", 0, err
	}
	cost, err := gw.SessionCost(ctx)
	if err != nil {
		return "", 0, err
	}
	return resp.Message.Content, cost, nil
}
