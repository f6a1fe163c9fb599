package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// ContinuationQueue is the at-least-once transport that delivers "resume job
// X" messages back to the orchestrator. Delivery may be delayed, duplicated
// or redelivered after a visibility timeout; consumers must be idempotent.
type ContinuationQueue interface {
	// Enqueue makes the continuation immediately visible.
	Enqueue(ctx context.Context, msg *models.Continuation) error

	// EnqueueDelayed makes the continuation visible after the given delay.
	// This implements the configured inter-step delay between pages.
	EnqueueDelayed(ctx context.Context, msg *models.Continuation, delay time.Duration) error

	// Receive claims the next visible continuation for the visibility
	// timeout. Returns models.ErrNoMessage when the queue is empty. The ack
	// function removes the message permanently; an unacked message becomes
	// visible again after the timeout.
	Receive(ctx context.Context) (*models.Continuation, func() error, error)
}
