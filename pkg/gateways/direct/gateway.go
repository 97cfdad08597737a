package direct

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// DefaultSessionID scopes persistence and cost accounting when the caller
// does not name a session.
const DefaultSessionID = "local"

// Options configure a direct gateway beyond its provider adapter. The zero
// value is usable: in-memory store, default pricing table, uncapped spend.
type Options struct {
	// SessionID scopes message persistence and cost accounting
	// (default: DefaultSessionID).
	SessionID string

	// SystemPrompt, when non-empty, is pinned as the first conversation turn
	// and survives Reset.
	SystemPrompt string

	// CostCapUSD is the ceiling on cumulative session spend. Zero means
	// uncapped.
	CostCapUSD float64

	// Store receives persisted messages. Nil means a fresh in-memory store
	// owned (and closed) by the gateway.
	Store gateway.MessageStore

	// Pricing is the rate table for local cost computation. Nil means
	// gateway.DefaultPricing().
	Pricing gateway.Pricing

	// WorkspaceRoot bounds the paths RequestFileURL will grant
	// (default: DefaultWorkspaceRoot).
	WorkspaceRoot string

	// MaxTokens and Temperature, when set, are forwarded on every provider
	// call.
	MaxTokens   *int
	Temperature *float32

	// Logger receives debug/warn lines. Nil means slog.Default().
	Logger *slog.Logger
}

// Gateway is the development Gateway variant: the provider credential lives
// in-process and every completion goes straight to the vendor SDK. Unlike the
// control-plane variant it owns the conversation history, and its ledger is
// authoritative because costs are computed locally from token usage.
//
// One instance per session; safe for concurrent use.
type Gateway struct {
	provider   gateway.Provider
	store      gateway.MessageStore
	ownsStore  bool
	pricing    gateway.Pricing
	ledger     *gateway.CostLedger
	middleware *gateway.MiddlewareChain
	logger     *slog.Logger

	sessionID     string
	systemPrompt  string
	workspaceRoot string
	maxTokens     *int
	temperature   *float32

	mu      sync.Mutex
	history []gateway.Message
}

// New creates a direct gateway around the given provider adapter.
func New(provider gateway.Provider, opts ...Options) (*Gateway, error) {
	if provider == nil {
		return nil, &gateway.Error{
			Code:    "missing_provider",
			Message: "direct gateway requires a provider adapter",
			Kind:    gateway.KindConfiguration,
		}
	}

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.SessionID == "" {
		o.SessionID = DefaultSessionID
	}
	if o.Pricing == nil {
		o.Pricing = gateway.DefaultPricing()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	g := &Gateway{
		provider:      provider,
		store:         o.Store,
		pricing:       o.Pricing,
		ledger:        gateway.NewCostLedger(o.CostCapUSD),
		middleware:    gateway.NewMiddlewareChain(nil),
		logger:        o.Logger,
		sessionID:     o.SessionID,
		systemPrompt:  o.SystemPrompt,
		workspaceRoot: normalizeWorkspaceRoot(o.WorkspaceRoot),
		maxTokens:     o.MaxTokens,
		temperature:   o.Temperature,
	}
	if g.store == nil {
		g.store = gateway.NewMemoryStore()
		g.ownsStore = true
	}
	if g.systemPrompt != "" {
		g.history = []gateway.Message{gateway.NewSystemMessage(g.systemPrompt)}
	}

	return g, nil
}

// SessionID returns the session this gateway is scoped to.
func (g *Gateway) SessionID() string {
	return g.sessionID
}

// Use appends invoke middleware, e.g. gateway.NewLoggingMiddleware.
func (g *Gateway) Use(mw gateway.Middleware) {
	g.middleware.AddMiddleware(mw)
}

// InvokeLLM sends the conversation so far plus the caller's new turns to the
// provider and charges the ledger the locally computed cost of the call.
//
// The new turns and the assistant reply join the history only when the
// provider call succeeds, so a failed invocation can be re-issued with the
// same request without duplicating turns. When a configured cap is already
// consumed the call fails fast with *gateway.CostCapExceededError before the
// provider is touched.
func (g *Gateway) InvokeLLM(ctx context.Context, req gateway.InvokeRequest) (*gateway.LLMResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &gateway.Error{
			Code:    "empty_messages",
			Message: "invoke requires at least one message",
			Kind:    gateway.KindValidation,
		}
	}
	for _, m := range req.Messages {
		if err := m.Validate(); err != nil {
			return nil, &gateway.Error{
				Code:    "invalid_message",
				Message: err.Error(),
				Kind:    gateway.KindValidation,
			}
		}
	}
	if err := req.ToolChoice.Validate(); err != nil {
		return nil, &gateway.Error{
			Code:    "invalid_tool_choice",
			Message: err.Error(),
			Kind:    gateway.KindValidation,
		}
	}

	processed, err := g.middleware.ProcessRequest(ctx, &req)
	if err != nil {
		return nil, err
	}
	req = *processed

	if err := g.ledger.CheckCap(); err != nil {
		if capErr, ok := err.(*gateway.CostCapExceededError); ok {
			capErr.SessionID = g.sessionID
		}
		return nil, err
	}

	newTurns := gateway.CloneMessages(req.Messages)
	for i := range newTurns {
		newTurns[i].EnsureID()
	}

	g.mu.Lock()
	conversation := make([]gateway.Message, 0, len(g.history)+len(newTurns))
	conversation = append(conversation, gateway.CloneMessages(g.history)...)
	conversation = append(conversation, newTurns...)
	g.mu.Unlock()

	start := time.Now()
	completion, err := g.provider.Complete(ctx, gateway.CompletionRequest{
		Messages:    conversation,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.WarnContext(ctx, "provider call failed",
			"provider", g.provider.Name(),
			"error", err,
		)
		_, _ = g.middleware.ProcessResponse(ctx, &req, nil, err)
		return nil, err
	}

	model := completion.Model
	if model == "" {
		model = g.provider.Model()
	}
	cost := g.pricing.Cost(model, completion.Usage)
	g.ledger.Add(cost)

	finish := completion.FinishReason
	if finish == "" {
		finish = gateway.FinishReasonStop
	}

	assistant := completion.Message.Clone()
	assistant.EnsureID()

	g.mu.Lock()
	g.history = append(g.history, newTurns...)
	g.history = append(g.history, assistant)
	g.mu.Unlock()

	g.logger.DebugContext(ctx, "provider call complete",
		"provider", g.provider.Name(),
		"model", model,
		"cost_usd", cost,
		"total_tokens", completion.Usage.TotalTokens,
		"latency", time.Since(start),
	)

	resp := &gateway.LLMResponse{
		Message:      assistant,
		CostUSD:      cost,
		Model:        model,
		FinishReason: finish,
		ToolCalls:    assistant.ToolCalls,
		Usage:        completion.Usage,
	}

	return g.middleware.ProcessResponse(ctx, &req, resp, nil)
}

// PersistMessages stores turns in the configured message store, which
// deduplicates on message identity. An empty batch is a no-op.
func (g *Gateway) PersistMessages(ctx context.Context, messages []gateway.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, m := range messages {
		if err := m.Validate(); err != nil {
			return &gateway.Error{
				Code:    "invalid_message",
				Message: err.Error(),
				Kind:    gateway.KindValidation,
			}
		}
	}

	batch := gateway.CloneMessages(messages)
	for i := range batch {
		batch[i].EnsureID()
	}

	return g.store.SaveMessages(ctx, g.sessionID, batch)
}

// SessionCost returns cumulative session spend. The direct variant computes
// every cost locally, so the ledger is authoritative and no I/O happens.
func (g *Gateway) SessionCost(context.Context) (float64, error) {
	return g.ledger.Consumed(), nil
}

// History returns an independent copy of the conversation so far, system
// prompt included.
func (g *Gateway) History() []gateway.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return gateway.CloneMessages(g.history)
}

// Reset clears the conversation history and recorded spend, re-pinning the
// system prompt when one was configured. The cap and the message store are
// retained.
func (g *Gateway) Reset() {
	g.mu.Lock()
	if g.systemPrompt != "" {
		g.history = []gateway.Message{gateway.NewSystemMessage(g.systemPrompt)}
	} else {
		g.history = nil
	}
	g.mu.Unlock()

	g.ledger.Reset()
}

// Close releases the provider adapter and, when the gateway created its own
// in-memory store, that store as well. Caller-supplied stores stay open for
// reuse.
func (g *Gateway) Close() error {
	err := g.provider.Close()
	if g.ownsStore {
		if serr := g.store.Close(); err == nil {
			err = serr
		}
	}
	return err
}

var _ gateway.Gateway = (*Gateway)(nil)
