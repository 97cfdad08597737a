package direct

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
	"github.com/halcyon-ai/go-gateway/pkg/providers/mock"
)

func userReq(content string) gateway.InvokeRequest {
	return gateway.InvokeRequest{
		Messages: []gateway.Message{gateway.NewUserMessage(content)},
	}
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gateway.KindConfiguration, gwErr.Kind)
}

func TestInvokeLLMRequiresMessages(t *testing.T) {
	g, err := New(mock.NewClient(""))
	require.NoError(t, err)

	_, err = g.InvokeLLM(context.Background(), gateway.InvokeRequest{})
	require.Error(t, err)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gateway.KindValidation, gwErr.Kind)
}

func TestInvokeLLMValidatesMessages(t *testing.T) {
	g, err := New(mock.NewClient(""))
	require.NoError(t, err)

	// Tool-role turn without the originating call ID is structurally invalid.
	bad := gateway.Message{Role: gateway.RoleTool, Content: "result"}
	_, err = g.InvokeLLM(context.Background(), gateway.InvokeRequest{Messages: []gateway.Message{bad}})
	require.Error(t, err)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gateway.KindValidation, gwErr.Kind)
}

func TestInvokeLLMMaintainsHistory(t *testing.T) {
	// The provider must see the system prompt plus every prior turn; the
	// assistant reply joins the history for the next call.
	provider := mock.NewClient("mock-model").
		WithResponse("Hi there").
		WithResponse("Fine, thanks")
	g, err := New(provider, Options{SystemPrompt: "You are terse."})
	require.NoError(t, err)

	resp, err := g.InvokeLLM(context.Background(), userReq("Hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Message.Content)
	assert.Equal(t, gateway.RoleAssistant, resp.Message.Role)

	first := provider.CallLog()[0]
	require.Len(t, first.Messages, 2)
	assert.Equal(t, gateway.RoleSystem, first.Messages[0].Role)
	assert.Equal(t, "You are terse.", first.Messages[0].Content)
	assert.Equal(t, "Hello", first.Messages[1].Content)

	_, err = g.InvokeLLM(context.Background(), userReq("How are you?"))
	require.NoError(t, err)

	second := provider.CallLog()[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, gateway.RoleAssistant, second.Messages[2].Role)
	assert.Equal(t, "Hi there", second.Messages[2].Content)
	assert.Equal(t, "How are you?", second.Messages[3].Content)

	history := g.History()
	require.Len(t, history, 5)
	assert.Equal(t, gateway.RoleSystem, history[0].Role)
	assert.Equal(t, "Fine, thanks", history[4].Content)
}

func TestInvokeLLMComputesCostFromUsage(t *testing.T) {
	// Session cost over N calls equals the exact sum of per-call costs.
	provider := mock.NewClient("test-model").
		WithUsage("one", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20}).
		WithUsage("two", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20})
	pricing := gateway.Pricing{"test-model": {InputPerMTok: 100, OutputPerMTok: 100}}
	g, err := New(provider, Options{Pricing: pricing})
	require.NoError(t, err)

	resp, err := g.InvokeLLM(context.Background(), userReq("first"))
	require.NoError(t, err)
	assert.InDelta(t, 0.002, resp.CostUSD, 1e-9)
	assert.Equal(t, "test-model", resp.Model)

	_, err = g.InvokeLLM(context.Background(), userReq("second"))
	require.NoError(t, err)

	cost, err := g.SessionCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.004, cost)
}

func TestInvokeLLMCapEnforcement(t *testing.T) {
	// Enforcement is post-hoc: the pre-dispatch check consults recorded
	// spend only, so the call that carries the total past the cap still
	// completes, and the one after it fails fast without touching the
	// provider.
	provider := mock.NewClient("test-model").
		WithUsage("first", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20}).
		WithUsage("second", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20})
	pricing := gateway.Pricing{"test-model": {InputPerMTok: 300, OutputPerMTok: 300}}
	g, err := New(provider, Options{
		CostCapUSD: 0.01,
		Pricing:    pricing,
		SessionID:  "cap-session",
	})
	require.NoError(t, err)

	resp, err := g.InvokeLLM(context.Background(), userReq("first"))
	require.NoError(t, err)
	assert.InDelta(t, 0.006, resp.CostUSD, 1e-9)

	resp, err = g.InvokeLLM(context.Background(), userReq("second"))
	require.NoError(t, err, "recorded spend is still under the cap")
	assert.InDelta(t, 0.006, resp.CostUSD, 1e-9)

	_, err = g.InvokeLLM(context.Background(), userReq("third"))
	require.Error(t, err)

	var capErr *gateway.CostCapExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 0.01, capErr.CapUSD)
	assert.Equal(t, 0.012, capErr.ConsumedUSD)
	assert.Equal(t, "cap-session", capErr.SessionID)

	assert.Equal(t, 2, provider.CallCount(), "rejected call must not reach the provider")
	assert.Len(t, g.History(), 4, "rejected turn must not join the history")

	cost, err := g.SessionCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.012, cost, "the rejected call bills nothing")
}

func TestInvokeLLMFailureLeavesStateUnchanged(t *testing.T) {
	// A failed provider call bills nothing and appends nothing, so the same
	// request can be re-issued without duplicating turns.
	provider := mock.NewClient("test-model").
		WithError(&gateway.RateLimitError{RetryAfter: time.Second, Provider: "mock"}).
		WithResponse("recovered")
	g, err := New(provider)
	require.NoError(t, err)

	req := userReq("hello")
	_, err = g.InvokeLLM(context.Background(), req)
	require.Error(t, err)

	var rateErr *gateway.RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Empty(t, g.History())

	cost, err := g.SessionCost(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cost)

	resp, err := g.InvokeLLM(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Message.Content)
	assert.Len(t, g.History(), 2)
}

func TestInvokeLLMToolCallResponse(t *testing.T) {
	provider := mock.NewClient("test-model").
		WithToolCall("get_weather", map[string]interface{}{"city": "Paris"})
	g, err := New(provider)
	require.NoError(t, err)

	resp, err := g.InvokeLLM(context.Background(), userReq("Weather in Paris?"))
	require.NoError(t, err)

	assert.Equal(t, gateway.FinishReasonToolCalls, resp.FinishReason)
	assert.True(t, resp.WantsToolExecution())
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Function.Name)
}

func TestInvokeLLMWithRetryNotDoubleBilled(t *testing.T) {
	// A retry only ever follows a non-billed failure: one rate-limited
	// attempt plus one success bills exactly one call.
	provider := mock.NewClient("test-model").
		WithError(&gateway.RateLimitError{RetryAfter: 5 * time.Millisecond, Provider: "mock"}).
		WithUsage("recovered", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20})
	pricing := gateway.Pricing{"test-model": {InputPerMTok: 100, OutputPerMTok: 100}}
	g, err := New(provider, Options{Pricing: pricing})
	require.NoError(t, err)

	retrying := gateway.WithRetry(g, gateway.RetryConfig{
		MaxRetries:   2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		MaxTotalWait: time.Second,
	})

	resp, err := retrying.InvokeLLM(context.Background(), userReq("hello"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Message.Content)
	assert.Equal(t, 2, provider.CallCount())

	cost, err := retrying.SessionCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.002, cost)
}

func TestPersistMessagesDeduplicates(t *testing.T) {
	store := gateway.NewMemoryStore()
	g, err := New(mock.NewClient(""), Options{Store: store, SessionID: "s1"})
	require.NoError(t, err)

	msgs := []gateway.Message{
		gateway.NewUserMessage("question"),
		gateway.NewAssistantMessage("answer"),
	}
	require.NoError(t, g.PersistMessages(context.Background(), msgs))
	require.NoError(t, g.PersistMessages(context.Background(), msgs))

	assert.Equal(t, 2, store.Count("s1"))

	stored, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "question", stored[0].Content)
	assert.Equal(t, "answer", stored[1].Content)
}

func TestPersistMessagesEmptyBatch(t *testing.T) {
	g, err := New(mock.NewClient(""))
	require.NoError(t, err)
	assert.NoError(t, g.PersistMessages(context.Background(), nil))
}

func TestConcurrentInvokesKeepExactLedger(t *testing.T) {
	// Two (here: twenty) concurrent invokes on one session must never lose
	// a ledger update.
	provider := mock.NewClient("test-model")
	for i := 0; i < 20; i++ {
		provider.WithUsage("ok", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20})
	}
	pricing := gateway.Pricing{"test-model": {InputPerMTok: 100, OutputPerMTok: 100}}
	g, err := New(provider, Options{Pricing: pricing})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, invokeErr := g.InvokeLLM(context.Background(), userReq(fmt.Sprintf("turn %d", n)))
			assert.NoError(t, invokeErr)
		}(i)
	}
	wg.Wait()

	cost, err := g.SessionCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.04, cost)
	assert.Len(t, g.History(), 40)
}

func TestResetRestoresSystemPrompt(t *testing.T) {
	provider := mock.NewClient("test-model").
		WithUsage("hi", gateway.TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20})
	pricing := gateway.Pricing{"test-model": {InputPerMTok: 100, OutputPerMTok: 100}}
	g, err := New(provider, Options{SystemPrompt: "stay brief", Pricing: pricing})
	require.NoError(t, err)

	_, err = g.InvokeLLM(context.Background(), userReq("hello"))
	require.NoError(t, err)
	require.Len(t, g.History(), 3)

	g.Reset()

	history := g.History()
	require.Len(t, history, 1)
	assert.Equal(t, gateway.RoleSystem, history[0].Role)
	assert.Equal(t, "stay brief", history[0].Content)

	cost, err := g.SessionCost(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cost)
}

func TestHistoryReturnsACopy(t *testing.T) {
	g, err := New(mock.NewClient("").WithResponse("original"))
	require.NoError(t, err)

	_, err = g.InvokeLLM(context.Background(), userReq("hello"))
	require.NoError(t, err)

	history := g.History()
	history[0].Content = "mutated"

	assert.Equal(t, "hello", g.History()[0].Content)
}

func TestInvokeLLMAppliesMiddleware(t *testing.T) {
	provider := mock.NewClient("mock-model").WithResponse("done")
	g, err := New(provider)
	require.NoError(t, err)
	g.Use(gateway.NewLoggingMiddleware(nil))

	_, err = g.InvokeLLM(context.Background(), userReq("hello"))
	require.NoError(t, err)
}

func TestCloseClosesProvider(t *testing.T) {
	provider := mock.NewClient("")
	g, err := New(provider)
	require.NoError(t, err)

	require.NoError(t, g.Close())
	assert.True(t, provider.Closed())
}
