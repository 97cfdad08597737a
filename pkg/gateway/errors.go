// Error taxonomy for gateway operations
package gateway

import (
	"fmt"
	"time"
)

// Error kind tags. These travel on the wire in structured error bodies and
// tag the base Error type; the dedicated error types below carry the same
// tags plus kind-specific fields.
const (
	KindCostCapExceeded = "cost_cap_exceeded"
	KindRateLimited     = "rate_limited"
	KindIndeterminate   = "indeterminate"
	KindProviderError   = "provider_error"
	KindAuthError       = "auth_error"
	KindSessionNotFound = "session_not_found"
	KindPathNotAllowed  = "path_not_allowed"
	KindNetworkError    = "network_error"
	KindValidation      = "validation_error"
	KindConfiguration   = "configuration_error"
)

// Error represents a standardized gateway error
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// CostCapExceededError is returned when an invocation would exceed, or the
// session has already reached, the configured cost cap. It is fatal to the
// call but not to the session: read operations and persistence still work.
type CostCapExceededError struct {
	CapUSD      float64 `json:"cap_usd"`
	ConsumedUSD float64 `json:"consumed_usd"`
	SessionID   string  `json:"session_id,omitempty"`
}

func (e *CostCapExceededError) Error() string {
	return fmt.Sprintf("session cost cap exceeded: consumed $%.6f of $%.6f cap", e.ConsumedUSD, e.CapUSD)
}

// RateLimitError is returned when the provider (or the control plane on its
// behalf) throttled the request. RetryAfter is always non-negative: it is the
// provider's hint when one was given, otherwise a conservative default.
type RateLimitError struct {
	RetryAfter time.Duration `json:"retry_after"`
	Provider   string        `json:"provider,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// DefaultRetryAfter is used when a throttling signal carries no hint.
const DefaultRetryAfter = 60 * time.Second

func (e *RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "rate limited"
	}
	return fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
}

// IndeterminateError is returned when an invocation failed in a way that
// leaves the billing outcome unknown: the request may have reached the
// control plane and been billed, or may never have arrived. Callers must not
// blindly retry; SessionCost reconciles the ledger with the authoritative
// figure.
type IndeterminateError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *IndeterminateError) Error() string {
	return fmt.Sprintf("%s outcome indeterminate after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *IndeterminateError) Unwrap() error {
	return e.Err
}

// ProviderError is a non-retryable upstream failure: malformed request,
// content policy rejection, or any provider-reported error that retrying
// cannot fix.
type ProviderError struct {
	Provider   string `json:"provider,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return e.Message
}

// AuthError is returned when the session token (or a provider credential in
// the direct variant) is invalid or expired. Never retried.
type AuthError struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason"`
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// SessionNotFoundError is returned when the control plane does not recognize
// the session the gateway was configured with.
type SessionNotFoundError struct {
	SessionID string `json:"session_id"`
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// PathNotAllowedError is returned by RequestFileURL when the requested path
// falls outside the session's workspace root.
type PathNotAllowedError struct {
	Path          string `json:"path"`
	AllowedPrefix string `json:"allowed_prefix"`
}

func (e *PathNotAllowedError) Error() string {
	return fmt.Sprintf("path %q is outside the allowed prefix %q", e.Path, e.AllowedPrefix)
}

// NetworkError is returned when transport attempts were exhausted without the
// request ever reaching the control plane, or for operations that are safe to
// report as plainly failed. The billing outcome is known: nothing was billed.
type NetworkError struct {
	Op             string
	Attempts       int
	LastStatusCode int
	Err            error
}

func (e *NetworkError) Error() string {
	if e.LastStatusCode > 0 {
		return fmt.Sprintf("%s failed after %d attempt(s): last status %d", e.Op, e.Attempts, e.LastStatusCode)
	}
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
