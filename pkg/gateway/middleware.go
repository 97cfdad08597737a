package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Middleware defines the interface for invoke middleware components
type Middleware interface {
	// Name returns the middleware name for identification
	Name() string

	// ProcessRequest processes the request before the invocation
	ProcessRequest(ctx context.Context, req *InvokeRequest) (*InvokeRequest, error)

	// ProcessResponse processes the outcome after the invocation
	ProcessResponse(ctx context.Context, req *InvokeRequest, resp *LLMResponse, err error) (*LLMResponse, error)
}

// MiddlewareChain manages a chain of invoke middleware
type MiddlewareChain struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares []Middleware) *MiddlewareChain {
	chain := &MiddlewareChain{}
	for _, middleware := range middlewares {
		chain.AddMiddleware(middleware)
	}
	return chain
}

// AddMiddleware adds a middleware to the chain
func (c *MiddlewareChain) AddMiddleware(middleware Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, middleware)
}

// RemoveMiddleware removes a middleware by name
func (c *MiddlewareChain) RemoveMiddleware(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, middleware := range c.middlewares {
		if middleware.Name() == name {
			c.middlewares = append(c.middlewares[:i], c.middlewares[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of middleware in the chain.
func (c *MiddlewareChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}

// ProcessRequest processes a request through the middleware chain
func (c *MiddlewareChain) ProcessRequest(ctx context.Context, req *InvokeRequest) (*InvokeRequest, error) {
	c.mu.RLock()
	middlewares := make([]Middleware, len(c.middlewares))
	copy(middlewares, c.middlewares)
	c.mu.RUnlock()

	currentReq := req
	var err error

	for _, middleware := range middlewares {
		currentReq, err = middleware.ProcessRequest(ctx, currentReq)
		if err != nil {
			return nil, fmt.Errorf("middleware %s failed: %w", middleware.Name(), err)
		}
	}

	return currentReq, nil
}

// ProcessResponse processes an outcome through the middleware chain (in reverse order)
func (c *MiddlewareChain) ProcessResponse(ctx context.Context, req *InvokeRequest, resp *LLMResponse, err error) (*LLMResponse, error) {
	c.mu.RLock()
	middlewares := make([]Middleware, len(c.middlewares))
	copy(middlewares, c.middlewares)
	c.mu.RUnlock()

	currentResp := resp
	currentErr := err

	// Process in reverse order
	for i := len(middlewares) - 1; i >= 0; i-- {
		middleware := middlewares[i]
		processedResp, processErr := middleware.ProcessResponse(ctx, req, currentResp, currentErr)
		if processErr != nil {
			// Continue with other middleware even if one fails
			continue
		}
		currentResp = processedResp
	}

	return currentResp, currentErr
}

// GetMiddlewareNames returns the names of all middleware in the chain
func (c *MiddlewareChain) GetMiddlewareNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.middlewares))
	for i, middleware := range c.middlewares {
		names[i] = middleware.Name()
	}
	return names
}

// LoggingMiddleware logs each invocation through slog: message counts and
// latency at debug level, failures with their error kind at warn level.
type LoggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware creates a logging middleware. A nil logger means
// slog.Default().
func NewLoggingMiddleware(logger *slog.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{logger: logger}
}

// Name returns the middleware name for identification
func (l *LoggingMiddleware) Name() string { return "logging" }

// ProcessRequest records the invocation start.
func (l *LoggingMiddleware) ProcessRequest(ctx context.Context, req *InvokeRequest) (*InvokeRequest, error) {
	l.logger.DebugContext(ctx, "invoking llm",
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)
	return req, nil
}

// ProcessResponse records the invocation outcome.
func (l *LoggingMiddleware) ProcessResponse(ctx context.Context, req *InvokeRequest, resp *LLMResponse, err error) (*LLMResponse, error) {
	if err != nil {
		l.logger.WarnContext(ctx, "llm invocation failed", "error", err)
		return resp, nil
	}
	l.logger.DebugContext(ctx, "llm invocation complete",
		"model", resp.Model,
		"finish_reason", resp.FinishReason,
		"cost_usd", resp.CostUSD,
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

var _ Middleware = (*LoggingMiddleware)(nil)
