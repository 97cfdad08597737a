// HTTP transport to the control plane
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// transport performs authenticated JSON exchanges with the broker, with
// bounded retries for failures that are provably safe to re-send.
type transport struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func newTransport(cfg gateway.Config) *transport {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = gateway.DefaultMaxTransportRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = gateway.DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &transport{
		baseURL:    strings.TrimSuffix(cfg.ControlPlaneURL, "/"),
		token:      cfg.SessionToken,
		sessionID:  cfg.SessionID,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		limiter:    limiter,
		logger:     logger,
	}
}

// do performs one logical operation against the broker, retrying transport
// failures and broker 5xx responses up to maxRetries total attempts.
//
// invoke marks the one operation that is not safe to blindly re-send: for
// it, only dial-stage failures (the request provably never left) are
// retried; any failure after the request may have reached the broker
// surfaces as *gateway.IndeterminateError.
func (t *transport) do(ctx context.Context, op, method, path string, query url.Values, payload, out interface{}, invoke bool) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
	}

	endpoint := t.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("%s: failed to create request: %w", op, err)
		}
		t.setHeaders(httpReq)

		start := time.Now()
		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled or timed out mid-flight: for invoke the broker
				// may already have billed the call.
				if invoke {
					return &gateway.IndeterminateError{Op: op, Attempts: attempt, Err: ctx.Err()}
				}
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			if invoke && !isDialFailure(err) {
				return &gateway.IndeterminateError{Op: op, Attempts: attempt, Err: err}
			}
			lastErr = err
			lastStatus = 0
			if attempt < t.maxRetries {
				t.logger.WarnContext(ctx, "control plane request failed, retrying",
					"op", op, "attempt", attempt, "error", err)
				if err := t.sleep(ctx, attempt); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				continue
			}
			break
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			// The response started arriving and was lost: executed on the
			// broker, outcome unknown for invoke.
			if invoke {
				return &gateway.IndeterminateError{Op: op, Attempts: attempt, Err: readErr}
			}
			lastErr = readErr
			lastStatus = resp.StatusCode
			if attempt < t.maxRetries {
				if err := t.sleep(ctx, attempt); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				continue
			}
			break
		}

		t.logger.DebugContext(ctx, "control plane request",
			"op", op, "status", resp.StatusCode, "duration", time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
				}
			}
			return nil

		case resp.StatusCode >= 500:
			// A 5xx is a broker-confirmed failure: the call was not billed,
			// so re-sending is safe for every operation.
			lastErr = fmt.Errorf("control plane returned status %d", resp.StatusCode)
			lastStatus = resp.StatusCode
			if attempt < t.maxRetries {
				t.logger.WarnContext(ctx, "control plane server error, retrying",
					"op", op, "attempt", attempt, "status", resp.StatusCode)
				if err := t.sleep(ctx, attempt); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				continue
			}

		default:
			return t.mapAPIError(resp.StatusCode, resp.Header, respBody)
		}
	}

	return &gateway.NetworkError{
		Op:             op,
		Attempts:       t.maxRetries,
		LastStatusCode: lastStatus,
		Err:            lastErr,
	}
}

// sleep waits out the exponential backoff before the next transport attempt.
func (t *transport) sleep(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(t.baseDelay) * math.Pow(2, float64(attempt-1)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// setHeaders sets common request headers.
func (t *transport) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("X-Gateway-SDK", "go-gateway/"+gateway.Version)
}

// isDialFailure reports whether the request provably never reached the
// broker: connection establishment failed.
func isDialFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// mapAPIError converts a broker 4xx into the error taxonomy.
func (t *transport) mapAPIError(status int, header http.Header, body []byte) error {
	var envelope apiErrorBody
	_ = json.Unmarshal(body, &envelope)
	code := envelope.Error.Code
	message := envelope.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		reason := message
		if reason == "" {
			reason = code
		}
		return &gateway.AuthError{SessionID: t.sessionID, Reason: reason}

	case http.StatusPaymentRequired:
		return &gateway.CostCapExceededError{
			CapUSD:      envelope.Error.CapUSD,
			ConsumedUSD: envelope.Error.ConsumedUSD,
			SessionID:   t.sessionID,
		}

	case http.StatusNotFound:
		if code == "" || code == "session_not_found" {
			return &gateway.SessionNotFoundError{SessionID: t.sessionID}
		}

	case http.StatusTooManyRequests:
		return &gateway.RateLimitError{
			RetryAfter: retryAfterHint(header, envelope.Error.RetryAfterSeconds),
			Message:    message,
		}
	}

	kind := gateway.KindProviderError
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		kind = gateway.KindValidation
	}
	return &gateway.Error{
		Code:       code,
		Message:    message,
		Kind:       kind,
		StatusCode: status,
	}
}

// retryAfterHint resolves the wait hint of a throttling response: the
// Retry-After header wins, then the structured body field, then the
// conservative default. Never negative.
func retryAfterHint(header http.Header, bodySeconds float64) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if bodySeconds > 0 {
		return time.Duration(bodySeconds * float64(time.Second))
	}
	return gateway.DefaultRetryAfter
}
