package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/models"
)

func TestWorkerPool_DispatchesByType(t *testing.T) {
	q := testQueue(t, time.Minute, 5)
	ctx := context.Background()

	var handled int32
	done := make(chan struct{})

	pool := NewWorkerPool(q, 2, 20*time.Millisecond, arbor.NewLogger())
	pool.RegisterHandler(models.MessageTypeContinuation, func(ctx context.Context, msg *models.Continuation) error {
		if atomic.AddInt32(&handled, 1) == 1 {
			close(done)
		}
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, models.NewContinuation("job-1")))

	pool.Start()
	defer pool.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation was never handled")
	}
}

func TestWorkerPool_SurvivesPanickingHandler(t *testing.T) {
	q := testQueue(t, 50*time.Millisecond, 10)
	ctx := context.Background()

	handled := make(chan string, 4)

	pool := NewWorkerPool(q, 2, 20*time.Millisecond, arbor.NewLogger())
	pool.RegisterHandler(models.MessageTypeContinuation, func(ctx context.Context, msg *models.Continuation) error {
		if msg.JobID == "job-panic" {
			panic("handler blew up")
		}
		handled <- msg.JobID
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, models.NewContinuation("job-panic")))
	require.NoError(t, q.Enqueue(ctx, models.NewContinuation("job-ok")))

	pool.Start()
	defer pool.Stop()

	// The panic takes down one worker but is recovered; the other worker
	// keeps draining the queue.
	select {
	case jobID := <-handled:
		assert.Equal(t, "job-ok", jobID)
	case <-time.After(5 * time.Second):
		t.Fatal("healthy continuation was never handled after a handler panic")
	}
}
