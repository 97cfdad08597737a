package controlplane

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// Gateway is the production Gateway variant. One instance per session; safe
// for concurrent use.
type Gateway struct {
	transport  *transport
	ledger     *gateway.CostLedger
	middleware *gateway.MiddlewareChain
	sessionID  string
}

// New creates a control-plane gateway from the given session configuration.
func New(cfg gateway.Config) (*Gateway, error) {
	if cfg.SessionToken == "" {
		return nil, &gateway.Error{
			Code:    "missing_session_token",
			Message: "control-plane gateway requires a session token",
			Kind:    gateway.KindConfiguration,
		}
	}
	if cfg.ControlPlaneURL == "" {
		return nil, &gateway.Error{
			Code:    "missing_control_plane_url",
			Message: "control-plane gateway requires the broker URL",
			Kind:    gateway.KindConfiguration,
		}
	}

	return &Gateway{
		transport:  newTransport(cfg),
		ledger:     gateway.NewCostLedger(cfg.CostCapUSD),
		middleware: gateway.NewMiddlewareChain(nil),
		sessionID:  cfg.SessionID,
	}, nil
}

// SessionID returns the session this gateway is scoped to.
func (g *Gateway) SessionID() string {
	return g.sessionID
}

// Use appends invoke middleware, e.g. gateway.NewLoggingMiddleware.
func (g *Gateway) Use(mw gateway.Middleware) {
	g.middleware.AddMiddleware(mw)
}

// InvokeLLM sends the new turns to the broker and records the authoritative
// cost of the call in the local ledger mirror.
//
// When a configured cap is already known to be consumed the call fails fast
// with *gateway.CostCapExceededError before any network I/O. A broker-side
// cap rejection (HTTP 402) reconciles the mirror so subsequent calls fail
// fast locally.
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

	messages := gateway.CloneMessages(req.Messages)
	for i := range messages {
		messages[i].EnsureID()
	}

	payload := invokePayload{
		NewMessages: messages,
		SessionID:   g.sessionID,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}

	var result invokeResult
	err = g.transport.do(ctx, "invoke_llm", http.MethodPost, pathInvoke, nil, payload, &result, true)
	if err != nil {
		// The broker records spend before rejecting over-cap sessions; keep
		// the mirror aligned so the next call fails fast without I/O.
		var capErr *gateway.CostCapExceededError
		if errors.As(err, &capErr) {
			g.ledger.Reconcile(capErr.ConsumedUSD)
		}
		_, _ = g.middleware.ProcessResponse(ctx, &req, nil, err)
		return nil, err
	}

	g.ledger.Add(result.CostUSD)

	finish := gateway.FinishReason(result.FinishReason)
	if finish == "" {
		finish = gateway.FinishReasonStop
	}

	resp := &gateway.LLMResponse{
		Message:      gateway.NewAssistantMessage(result.Message.Content, result.ToolCalls...),
		CostUSD:      result.CostUSD,
		Model:        result.Model,
		FinishReason: finish,
		ToolCalls:    result.ToolCalls,
		Usage:        result.Usage,
	}

	return g.middleware.ProcessResponse(ctx, &req, resp, nil)
}

// PersistMessages stores turns through the broker, which deduplicates on
// message identity. An empty batch is a local no-op.
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

	payload := persistPayload{Messages: batch, SessionID: g.sessionID}
	return g.transport.do(ctx, "persist_messages", http.MethodPost, pathPersist, nil, payload, nil, false)
}

// RequestFileURL asks the broker for a presigned URL scoped to the session
// workspace.
func (g *Gateway) RequestFileURL(ctx context.Context, filePath string, method gateway.URLMethod) (*gateway.PresignedURL, error) {
	if filePath == "" {
		return nil, &gateway.Error{
			Code:    "empty_file_path",
			Message: "file path is required",
			Kind:    gateway.KindValidation,
		}
	}
	if method != gateway.URLMethodPut && method != gateway.URLMethodGet {
		return nil, &gateway.Error{
			Code:    "invalid_url_method",
			Message: "method must be PUT or GET, got " + string(method),
			Kind:    gateway.KindValidation,
		}
	}

	payload := fileURLPayload{
		FilePath:  filePath,
		Method:    string(method),
		SessionID: g.sessionID,
	}

	var grant gateway.PresignedURL
	if err := g.transport.do(ctx, "request_file_url", http.MethodPost, pathPresignedURLs, nil, payload, &grant, false); err != nil {
		return nil, err
	}
	return &grant, nil
}

// SessionCost fetches the broker's authoritative session total and
// reconciles the local mirror with it. After a cancelled or indeterminate
// invocation this is how the ledger catches up with spend that already
// happened.
func (g *Gateway) SessionCost(ctx context.Context) (float64, error) {
	query := url.Values{}
	if g.sessionID != "" {
		query.Set("session_id", g.sessionID)
	}

	var result costResult
	if err := g.transport.do(ctx, "get_session_cost", http.MethodGet, pathSessionCost, query, nil, &result, false); err != nil {
		return 0, err
	}

	g.ledger.Reconcile(result.CostUSD)
	return result.CostUSD, nil
}

// LocalCost returns the mirror's view of session spend without a network
// round trip. It can lag the broker after cancellations; SessionCost is the
// authoritative read.
func (g *Gateway) LocalCost() float64 {
	return g.ledger.Consumed()
}

// Close releases idle transport connections.
func (g *Gateway) Close() error {
	g.transport.httpClient.CloseIdleConnections()
	return nil
}

var _ gateway.Gateway = (*Gateway)(nil)
