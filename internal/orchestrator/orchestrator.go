// -----------------------------------------------------------------------
// Job Orchestrator - One continuation, one unit of work, one decision
// -----------------------------------------------------------------------

// Package orchestrator drives search jobs through their state machine. Each
// continuation delivery runs exactly one unit of work: resolve config, plan
// the next term, fetch one page through the retry controller, merge the
// unique delta, persist, then either finalize the job or emit exactly one
// follow-up continuation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/ledger"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/planner"
	"github.com/ternarybob/reperio/internal/providers"
	"github.com/ternarybob/reperio/internal/retry"
	storagebadger "github.com/ternarybob/reperio/internal/storage/badger"
)

// ProgressPublisher receives a snapshot after every persisted step. May be
// nil.
type ProgressPublisher interface {
	PublishProgress(job *models.SearchJob)
}

// Orchestrator advances search jobs one continuation at a time.
type Orchestrator struct {
	jobs     interfaces.JobStorage
	batches  interfaces.BatchStorage
	registry *providers.Registry
	resolver *common.SettingsResolver
	queue    interfaces.ContinuationQueue
	events   ProgressPublisher
	logger   arbor.ILogger
	now      func() time.Time
}

// New creates an orchestrator.
func New(jobs interfaces.JobStorage, batches interfaces.BatchStorage, registry *providers.Registry, resolver *common.SettingsResolver, queue interfaces.ContinuationQueue, events ProgressPublisher, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		batches:  batches,
		registry: registry,
		resolver: resolver,
		queue:    queue,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleContinuation processes one continuation delivery for a job. A nil
// return acks the message; an error leaves it for redelivery. The handler is
// idempotent: terminal jobs are a no-op, and progress is re-derived from
// durable state, so duplicate and concurrent deliveries merge safely.
func (o *Orchestrator) HandleContinuation(ctx context.Context, msg *models.Continuation) error {
	job, err := o.jobs.GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, storagebadger.ErrJobNotFound) {
			// Nothing to resume; redelivery cannot help.
			o.logger.Warn().Str("job_id", msg.JobID).Msg("Continuation for unknown job, dropping")
			return nil
		}
		return fmt.Errorf("failed to load job %s: %w", msg.JobID, err)
	}

	// Terminal jobs never move again. This check is what makes a
	// redelivered or stale continuation a no-op instead of a way to flip
	// an errored job back to completed.
	if job.Status.IsTerminal() {
		o.logger.Debug().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("Continuation for terminal job, ignoring")
		return nil
	}

	rt, err := o.resolver.Resolve(ctx, string(job.Platform))
	if err != nil {
		return fmt.Errorf("failed to resolve settings for %s: %w", job.Platform, err)
	}

	if o.now().After(job.TimeoutAt) {
		o.logger.Info().
			Str("job_id", job.ID).
			Str("timeout_at", job.TimeoutAt.Format(time.RFC3339)).
			Int("unique_found", job.UniqueFound).
			Msg("Job deadline passed, timing out")
		return o.finalize(ctx, job, models.JobStatusTimeout, "")
	}

	job.MarkProcessing()

	if job.Attempts >= rt.MaxAttempts {
		// Attempt budget spent. Completing below target is an accepted
		// outcome, flagged partial, distinct from error.
		return o.complete(ctx, job)
	}

	unit, ok := planner.New(rt.PageSize).Next(job)
	if !ok {
		return o.complete(ctx, job)
	}

	provider, err := o.registry.Resolve(job.Platform, job.Mode)
	if err != nil {
		return o.finalize(ctx, job, models.JobStatusError, err.Error())
	}

	page, fetchErr := o.fetchPage(ctx, provider, job, unit, rt)

	job.Attempts++
	if alloc := job.Allocation(unit.Keyword); alloc != nil {
		alloc.Attempts++
	}

	if fetchErr != nil {
		// The controller already absorbed every retryable failure; what
		// reaches this point ends the job. Error always wins over any
		// completion signal observed in the same invocation.
		o.logger.Error().
			Err(fetchErr).
			Str("job_id", job.ID).
			Str("keyword", unit.Keyword).
			Int("attempt", job.Attempts).
			Msg("Page fetch failed terminally")
		return o.finalize(ctx, job, models.JobStatusError, fetchErr.Error())
	}

	if err := o.mergePage(ctx, job, unit, page); err != nil {
		return err
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("keyword", unit.Keyword).
		Int("attempt", job.Attempts).
		Int("page_items", len(page.Items)).
		Int("unique_found", job.UniqueFound).
		Int("target", job.TargetCount).
		Bool("has_more", page.HasMore).
		Msg("Page merged")

	// Decision, in priority order: target reached, supply exhausted,
	// otherwise keep processing with exactly one follow-up continuation.
	if job.TargetReached() || job.Exhausted() {
		return o.complete(ctx, job)
	}

	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job progress: %w", err)
	}
	o.publish(job)

	next := models.NewContinuation(job.ID)
	if err := o.queue.EnqueueDelayed(ctx, next, rt.StepDelay); err != nil {
		// Progress is saved; redelivery of this message re-runs the step
		// idempotently and tries the enqueue again.
		return fmt.Errorf("failed to enqueue continuation: %w", err)
	}

	return nil
}

// fetchPage invokes the provider through the retry controller with the
// resolved policy.
func (o *Orchestrator) fetchPage(ctx context.Context, provider interfaces.Provider, job *models.SearchJob, unit planner.Unit, rt *common.ProviderRuntime) (*interfaces.Page, error) {
	req := interfaces.FetchRequest{
		Platform:     job.Platform,
		Mode:         job.Mode,
		Keyword:      unit.Keyword,
		TargetHandle: job.TargetHandle,
		Cursor:       unit.Cursor,
		Limit:        unit.Limit,
	}

	controller := retry.NewController(retry.Policy{
		MaxAttempts:    rt.RetryMaxAttempts,
		BaseDelay:      rt.RetryBaseDelay,
		MaxDelay:       rt.RetryMaxDelay,
		JitterFraction: rt.RetryJitter,
		Retryable:      providers.IsRetryable,
	}, o.logger)

	var page *interfaces.Page
	err := controller.Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		page, fetchErr = provider.FetchPage(ctx, req)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// mergePage folds one fetched page into the job: rebuild the seen-set from
// durable batches, compute the unique delta, append it as a new batch and
// update the progress counters and cursors.
func (o *Orchestrator) mergePage(ctx context.Context, job *models.SearchJob, unit planner.Unit, page *interfaces.Page) error {
	seen, err := ledger.Rebuild(ctx, o.batches, job.ID)
	if err != nil {
		return fmt.Errorf("failed to rebuild seen set: %w", err)
	}

	merged := ledger.Merge(seen, page.Items)
	if len(merged.Delta) > 0 {
		batch := models.NewResultBatch(job.ID, job.Attempts, unit.Keyword, merged.Delta)
		if err := o.batches.SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to append result batch: %w", err)
		}
	}

	// Unique count is the set cardinality, never a sum of per-call counts.
	job.UniqueFound = len(merged.Seen)

	if job.Mode == models.SearchModeSimilar {
		job.Cursor = page.NextCursor
		job.SimilarExhausted = !page.HasMore
		return nil
	}

	if alloc := job.Allocation(unit.Keyword); alloc != nil {
		alloc.UniqueFound += len(merged.Delta)
		alloc.Cursor = page.NextCursor
		alloc.Exhausted = !page.HasMore
	}
	return nil
}

// complete finalizes a job that ran out of target, supply or attempts. If
// the target was missed the completion is flagged partial; exhaustion is an
// expected terminal case, not a failure.
func (o *Orchestrator) complete(ctx context.Context, job *models.SearchJob) error {
	job.Partial = !job.TargetReached()
	return o.finalize(ctx, job, models.JobStatusCompleted, "")
}

func (o *Orchestrator) finalize(ctx context.Context, job *models.SearchJob, status models.JobStatus, errDetail string) error {
	job.MarkTerminal(status, errDetail)
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist terminal status: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Bool("partial", job.Partial).
		Int("unique_found", job.UniqueFound).
		Int("target", job.TargetCount).
		Int("attempts", job.Attempts).
		Msg("Job finalized")

	o.publish(job)
	return nil
}

func (o *Orchestrator) publish(job *models.SearchJob) {
	if o.events != nil {
		o.events.PublishProgress(job)
	}
}
