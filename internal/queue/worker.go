package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/models"
)

// Handler processes one continuation. A non-nil error leaves the message
// unacked so the visibility timeout redelivers it; handlers are therefore
// required to be idempotent.
type Handler func(ctx context.Context, msg *models.Continuation) error

// WorkerPool polls the continuation queue and dispatches messages to
// registered handlers by message type.
type WorkerPool struct {
	queueMgr     *Manager
	handlers     map[string]Handler
	concurrency  int
	pollInterval time.Duration
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queueMgr *Manager, concurrency int, pollInterval time.Duration, logger arbor.ILogger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queueMgr:     queueMgr,
		handlers:     make(map[string]Handler),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterHandler registers a handler for a message type. Must be called
// before Start.
func (wp *WorkerPool) RegisterHandler(msgType string, handler Handler) {
	wp.handlers[msgType] = handler
	wp.logger.Debug().
		Str("message_type", msgType).
		Msg("Queue handler registered")
}

// Start starts the worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("poll_interval", wp.pollInterval).
		Msg("Starting continuation worker pool")

	for i := 0; i < wp.concurrency; i++ {
		workerID := i
		common.SafeGo(wp.logger, fmt.Sprintf("queue-worker-%d", workerID), func() {
			wp.worker(workerID)
		})
	}
}

// Stop gracefully stops the worker pool
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping continuation worker pool")
	wp.cancel()
}

func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to spread polling across the interval.
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil && !errors.Is(err, models.ErrNoMessage) {
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing continuation")
			}
		}
	}
}

func (wp *WorkerPool) processMessage(workerID int) error {
	msg, ack, err := wp.queueMgr.Receive(wp.ctx)
	if err != nil {
		return err
	}

	handler, exists := wp.handlers[msg.Type]
	if !exists {
		wp.logger.Error().
			Str("message_type", msg.Type).
			Str("message_id", msg.ID).
			Msg("No handler registered for message type")
		// Nothing will ever handle it; drop instead of redelivering.
		return ack()
	}

	wp.logger.Debug().
		Str("message_id", msg.ID).
		Str("job_id", msg.JobID).
		Int("worker_id", workerID).
		Msg("Processing continuation")

	startTime := time.Now()
	handlerErr := handler(wp.ctx, msg)
	duration := time.Since(startTime)

	if handlerErr != nil {
		// Leave unacked: visibility timeout redelivers, max-receive
		// dead-letters a persistent failure.
		wp.logger.Error().
			Err(handlerErr).
			Str("message_id", msg.ID).
			Str("job_id", msg.JobID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Continuation handler failed")
		return handlerErr
	}

	wp.logger.Debug().
		Str("message_id", msg.ID).
		Str("job_id", msg.JobID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Continuation processed")

	if err := ack(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to ack continuation; it may be redelivered")
		return err
	}
	return nil
}
