// Automatic retry of rate-limited invocations with exponential backoff.
//
// By default a Gateway surfaces throttling to the caller as *RateLimitError
// and performs no waiting of its own. WithRetry wraps any Gateway with an
// opt-in retry loop for exactly that error kind.
//
// Examples:
//
// Basic usage with default configuration (3 retries, 1s base delay, 2x backoff):
//
//	gw, _ := controlplane.New(cfg)
//	retryGW := gateway.WithRetry(gw)
//	resp, err := retryGW.InvokeLLM(ctx, req)
//
// Batch agent that can afford long waits:
//
//	retryConfig := gateway.RetryConfig{
//		MaxRetries:   6,
//		BaseDelay:    2 * time.Second,
//		MaxDelay:     2 * time.Minute,
//		MaxTotalWait: 10 * time.Minute,
//	}
//	retryGW := gateway.WithRetry(gw, retryConfig)
//
// Interactive agent that fails fast:
//
//	retryConfig := gateway.RetryConfig{
//		MaxRetries:   1,
//		BaseDelay:    200 * time.Millisecond,
//		MaxTotalWait: 5 * time.Second,
//	}
//	retryGW := gateway.WithRetry(gw, retryConfig)
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// secureRandomFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureRandomFloat64() (float64, error) {
	var bytes [8]byte
	_, err := rand.Read(bytes[:])
	if err != nil {
		return 0, err
	}
	// Convert bytes to uint64, then to float64 between 0 and 1
	return float64(binary.BigEndian.Uint64(bytes[:])) / float64(^uint64(0)), nil
}

// RetryConfig defines configuration options for the retry mechanism.
//
// Only rate-limit failures are ever retried. Cost-cap, auth, provider, and
// indeterminate failures propagate immediately: a retry may only follow a
// failure that is known not to have been billed, which is what makes the
// wrapper safe against double billing.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	// Total requests = MaxRetries + 1 (original attempt).
	MaxRetries int

	// BaseDelay is the initial backoff delay used when the throttling
	// signal carries no hint (default: 1 second). Each retry multiplies it
	// by BackoffFactor.
	BaseDelay time.Duration

	// MaxDelay caps any single wait, hinted or computed (default: 60
	// seconds).
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each retry (default: 2.0).
	BackoffFactor float64

	// Jitter adds randomness to computed backoff delays to prevent
	// thundering herd (default: true). Multiplies the delay by a random
	// factor between 0.5 and 1.5. Hinted delays are never jittered: the
	// provider told us when to come back.
	Jitter bool

	// MaxTotalWait bounds the cumulative time spent waiting across all
	// retries of one invocation (default: 5 minutes). When the next wait
	// would cross this bound the wrapper stops and returns the last
	// rate-limit error.
	MaxTotalWait time.Duration

	// IgnoreRetryAfter disables honoring the RetryAfter hint carried by
	// rate-limit errors, falling back to pure exponential backoff. Mainly
	// useful in tests.
	IgnoreRetryAfter bool
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		MaxTotalWait:  5 * time.Minute,
	}
}

// retryGateway wraps a Gateway with rate-limit retry functionality.
type retryGateway struct {
	inner  Gateway
	config RetryConfig
}

// WithRetry creates a retrying wrapper around any Gateway. InvokeLLM is
// re-attempted when the failure is a *RateLimitError, sleeping the hinted
// RetryAfter when one is present and exponential backoff otherwise; all
// other operations pass through unchanged.
//
// Waits respect context cancellation: cancelling the context during a wait
// returns ctx.Err() immediately.
func WithRetry(gw Gateway, config ...RetryConfig) Gateway {
	cfg := DefaultRetryConfig()
	if len(config) > 0 {
		cfg = config[0]
		// Ensure sane defaults for zero values
		if cfg.MaxRetries <= 0 {
			cfg.MaxRetries = 3
		}
		if cfg.BaseDelay <= 0 {
			cfg.BaseDelay = 1 * time.Second
		}
		if cfg.MaxDelay <= 0 {
			cfg.MaxDelay = 60 * time.Second
		}
		if cfg.BackoffFactor <= 0 {
			cfg.BackoffFactor = 2.0
		}
		if cfg.MaxTotalWait <= 0 {
			cfg.MaxTotalWait = 5 * time.Minute
		}
	}

	return &retryGateway{
		inner:  gw,
		config: cfg,
	}
}

// InvokeLLM executes the invocation with rate-limit retry logic.
func (r *retryGateway) InvokeLLM(ctx context.Context, req InvokeRequest) (*LLMResponse, error) {
	var lastErr error
	var waited time.Duration

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		resp, err := r.inner.InvokeLLM(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Don't retry on the last attempt
		if attempt == r.config.MaxRetries {
			break
		}

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			return nil, err
		}

		delay := r.delayFor(attempt, rateErr)
		if waited+delay > r.config.MaxTotalWait {
			break
		}
		waited += delay

		// Wait out the delay, but also respect context cancellation
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// PersistMessages passes through to the wrapped gateway.
func (r *retryGateway) PersistMessages(ctx context.Context, messages []Message) error {
	return r.inner.PersistMessages(ctx, messages)
}

// RequestFileURL passes through to the wrapped gateway.
func (r *retryGateway) RequestFileURL(ctx context.Context, filePath string, method URLMethod) (*PresignedURL, error) {
	return r.inner.RequestFileURL(ctx, filePath, method)
}

// SessionCost passes through to the wrapped gateway.
func (r *retryGateway) SessionCost(ctx context.Context) (float64, error) {
	return r.inner.SessionCost(ctx)
}

// Close closes the wrapped gateway.
func (r *retryGateway) Close() error {
	return r.inner.Close()
}

// delayFor picks the wait before the next attempt: the provider's hint when
// present, exponential backoff otherwise, both capped at MaxDelay.
func (r *retryGateway) delayFor(attempt int, rateErr *RateLimitError) time.Duration {
	if !r.config.IgnoreRetryAfter && rateErr.RetryAfter > 0 {
		if rateErr.RetryAfter > r.config.MaxDelay {
			return r.config.MaxDelay
		}
		return rateErr.RetryAfter
	}
	return r.backoffDelay(attempt)
}

// backoffDelay computes the delay for a given retry attempt using exponential backoff
func (r *retryGateway) backoffDelay(attempt int) time.Duration {
	// baseDelay * (backoffFactor ^ attempt)
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))

	// Apply jitter if enabled (random factor between 0.5 and 1.5)
	if r.config.Jitter {
		randomValue, err := secureRandomFloat64()
		if err != nil {
			// If we can't generate secure random, use maximum jitter factor for safety
			randomValue = 1.0
		}
		jitterFactor := 0.5 + randomValue
		delay *= jitterFactor
	}

	// Cap at maximum delay
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	return time.Duration(delay)
}

// Ensure retryGateway implements Gateway
var _ Gateway = (*retryGateway)(nil)
