package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// JobListOptions filters and pages job listings.
type JobListOptions struct {
	OwnerID  string
	Status   models.JobStatus
	Platform models.Platform
	Limit    int
	Offset   int
}

// JobStorage is the durable store for search jobs. It is the sole source of
// truth between continuations.
type JobStorage interface {
	// SaveJob upserts a job row. A row already in a terminal status is never
	// overwritten; such writes return nil without touching storage.
	SaveJob(ctx context.Context, job *models.SearchJob) error

	// GetJob loads a job by ID. Returns an error wrapping ErrJobNotFound if
	// the job does not exist.
	GetJob(ctx context.Context, jobID string) (*models.SearchJob, error)

	// ListJobs returns jobs matching the options, newest first.
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.SearchJob, error)

	// GetJobsByStatus returns all jobs in the given status.
	GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.SearchJob, error)
}

// BatchStorage is the append-only store for result batches.
type BatchStorage interface {
	// SaveBatch appends a batch. Batches are write-once.
	SaveBatch(ctx context.Context, batch *models.ResultBatch) error

	// ListBatches returns all batches for a job in insertion order.
	ListBatches(ctx context.Context, jobID string) ([]*models.ResultBatch, error)

	// SeenKeys returns the union of creator keys across all batches of a job.
	// This is the authoritative dedup set rebuilt at the start of every
	// orchestrator invocation.
	SeenKeys(ctx context.Context, jobID string) (map[models.CreatorKey]struct{}, error)
}

// KeyValueStorage is a small string KV store used for hot-reloadable
// per-platform setting overrides.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}
