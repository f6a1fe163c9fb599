package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// APIError represents a non-2xx response from an upstream discovery API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents an upstream 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limit exceeded, retry after %v", e.RetryAfter)
}

// TerminalError marks a failure that retrying cannot fix: invalid target
// handle, malformed keyword, revoked credentials. The orchestrator moves the
// job straight to error on one of these.
type TerminalError struct {
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// NewTerminalError wraps err as terminal.
func NewTerminalError(reason string, err error) *TerminalError {
	return &TerminalError{Reason: reason, Err: err}
}

// IsRetryable classifies provider errors for the retry controller: rate
// limits, timeouts, transport failures and 5xx/408/429 are retryable; any
// explicitly terminal error and other 4xx (bad input, auth) are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return false
	}

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// Unknown transport-level failures get the benefit of the doubt.
	return true
}
