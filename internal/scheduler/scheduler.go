// -----------------------------------------------------------------------
// Janitor - Periodic sweep for timed-out and stalled jobs
// -----------------------------------------------------------------------

// Package scheduler runs the background sweep that keeps the job table
// honest. The orchestrator checks a job's deadline only when a continuation
// for it is delivered, so a job whose continuation was lost would sit in
// processing forever. The janitor times out overdue jobs and re-emits a
// continuation for jobs that stopped moving but still have deadline left.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/events"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// stallThreshold is how long a non-terminal job may go without an update
// before the janitor re-emits a continuation for it. Generous compared to
// the step delay so normal retry backoff never looks like a stall.
const stallThreshold = 2 * time.Minute

// Janitor periodically sweeps non-terminal jobs.
type Janitor struct {
	jobs   interfaces.JobStorage
	queue  interfaces.ContinuationQueue
	events interfaces.EventService
	cron   *cron.Cron
	logger arbor.ILogger
	mu     sync.Mutex
	now    func() time.Time

	running bool
}

// NewJanitor creates a janitor.
func NewJanitor(jobs interfaces.JobStorage, queue interfaces.ContinuationQueue, events interfaces.EventService, logger arbor.ILogger) *Janitor {
	return &Janitor{
		jobs:   jobs,
		queue:  queue,
		events: events,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the sweep with the given cron expression.
func (j *Janitor) Start(cronExpr string) error {
	if j.running {
		return fmt.Errorf("janitor already running")
	}

	if cronExpr == "" {
		cronExpr = "*/1 * * * *"
	}

	if _, err := j.cron.AddFunc(cronExpr, j.runSweep); err != nil {
		return fmt.Errorf("failed to schedule janitor sweep: %w", err)
	}

	j.cron.Start()
	j.running = true

	j.logger.Info().Str("schedule", cronExpr).Msg("Janitor started")
	return nil
}

// Stop halts the sweep. Blocks until an in-flight sweep finishes.
func (j *Janitor) Stop() {
	if !j.running {
		return
	}
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.running = false
	j.logger.Info().Msg("Janitor stopped")
}

func (j *Janitor) runSweep() {
	// One sweep at a time. A slow sweep overlapping the next tick would
	// otherwise double-requeue the same stalled jobs.
	if !j.mu.TryLock() {
		j.logger.Debug().Msg("Janitor sweep already in progress, skipping")
		return
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.Sweep(ctx); err != nil {
		j.logger.Error().Err(err).Msg("Janitor sweep failed")
	}
}

// Sweep runs one pass over non-terminal jobs: overdue jobs are timed out,
// stalled jobs get a fresh continuation. Exported for tests.
func (j *Janitor) Sweep(ctx context.Context) error {
	now := j.now()
	timedOut := 0
	requeued := 0

	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing} {
		jobs, err := j.jobs.GetJobsByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list %s jobs: %w", status, err)
		}

		for _, job := range jobs {
			switch {
			case now.After(job.TimeoutAt):
				if err := j.timeoutJob(ctx, job); err != nil {
					j.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to time out overdue job")
					continue
				}
				timedOut++

			case now.Sub(job.UpdatedAt) > stallThreshold:
				if err := j.queue.Enqueue(ctx, models.NewContinuation(job.ID)); err != nil {
					j.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to requeue stalled job")
					continue
				}
				// Touch the row so the next sweep does not requeue again
				// before the continuation had a chance to run.
				job.MarkProcessing()
				if err := j.jobs.SaveJob(ctx, job); err != nil {
					j.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to touch stalled job")
				}
				requeued++
			}
		}
	}

	if timedOut > 0 || requeued > 0 {
		j.logger.Info().
			Int("timed_out", timedOut).
			Int("requeued", requeued).
			Msg("Janitor sweep finished")
	}

	return nil
}

func (j *Janitor) timeoutJob(ctx context.Context, job *models.SearchJob) error {
	j.logger.Info().
		Str("job_id", job.ID).
		Str("timeout_at", job.TimeoutAt.Format(time.RFC3339)).
		Int("unique_found", job.UniqueFound).
		Msg("Timing out overdue job")

	job.MarkTerminal(models.JobStatusTimeout, "")
	if err := j.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	if j.events != nil {
		payload := events.JobProgress{
			JobID:           job.ID,
			Status:          string(job.Status),
			ProcessedUnique: job.UniqueFound,
			Target:          job.TargetCount,
			ProgressPercent: job.ProgressPercent(),
			Attempts:        job.Attempts,
			Partial:         job.Partial,
		}
		if err := j.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobFinalized, Payload: payload}); err != nil {
			j.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish timeout event")
		}
	}
	return nil
}
