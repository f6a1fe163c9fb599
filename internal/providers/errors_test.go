package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"terminal", NewTerminalError("invalid handle", nil), false},
		{"wrapped terminal", fmt.Errorf("fetch: %w", NewTerminalError("revoked token", nil)), false},
		{"rate limit", &RateLimitError{RetryAfter: time.Second}, true},
		{"server error", &APIError{StatusCode: 500}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"too many requests", &APIError{StatusCode: 429}, true},
		{"request timeout", &APIError{StatusCode: 408}, true},
		{"unauthorized", &APIError{StatusCode: 401}, false},
		{"not found", &APIError{StatusCode: 404}, false},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"unknown transport error", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestTerminalError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := NewTerminalError("bad input", inner)

	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "bad input")
	assert.Contains(t, err.Error(), "root cause")

	bare := NewTerminalError("just a reason", nil)
	assert.Equal(t, "just a reason", bare.Error())
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{StatusCode: 503, Message: "upstream busy", Endpoint: "/v2/acts/run"}
	assert.Contains(t, err.Error(), "upstream busy")
	assert.Contains(t, err.Error(), "503")
}
