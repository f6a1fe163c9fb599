package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func testController(policy Policy) (*Controller, *[]time.Duration) {
	c := NewController(policy, arbor.NewLogger())
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	c, delays := testController(Policy{MaxAttempts: 3, Retryable: func(error) bool { return true }})

	calls := 0
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	c, delays := testController(Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		Retryable:   func(error) bool { return true },
	})

	calls := 0
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *delays, 2)
}

func TestExecute_TerminalErrorReturnsImmediately(t *testing.T) {
	terminal := errors.New("bad credentials")
	c, delays := testController(Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, terminal) },
	})

	calls := 0
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return terminal
	})

	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestExecute_ExhaustionWrapsFinalError(t *testing.T) {
	final := errors.New("still failing")
	c, _ := testController(Policy{
		MaxAttempts: 3,
		Retryable:   func(error) bool { return true },
	})

	calls := 0
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return final
	})

	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, final)
}

func TestExecute_NilClassifierIsTerminal(t *testing.T) {
	c, _ := testController(Policy{MaxAttempts: 5})

	calls := 0
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_BackoffDoublesAndCaps(t *testing.T) {
	c, delays := testController(Policy{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
		Retryable:   func(error) bool { return true },
	})

	c.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("transient")
	})

	// No jitter configured: 1s, 2s, 4s, then capped at 4s.
	require.Len(t, *delays, 5)
	assert.Equal(t, time.Second, (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[1])
	assert.Equal(t, 4*time.Second, (*delays)[2])
	assert.Equal(t, 4*time.Second, (*delays)[3])
	assert.Equal(t, 4*time.Second, (*delays)[4])
}

func TestExecute_JitterStaysWithinBounds(t *testing.T) {
	c, delays := testController(Policy{
		MaxAttempts:    10,
		BaseDelay:      time.Second,
		MaxDelay:       time.Second,
		JitterFraction: 0.2,
		Retryable:      func(error) bool { return true },
	})

	c.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("transient")
	})

	for _, d := range *delays {
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestExecute_ContextCancelled(t *testing.T) {
	c := NewController(Policy{MaxAttempts: 3, Retryable: func(error) bool { return true }}, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := c.Execute(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
