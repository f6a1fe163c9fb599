package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// ErrJobNotFound is returned when a job ID does not exist.
var ErrJobNotFound = errors.New("job not found")

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// SaveJob upserts a job row. Terminal rows are immutable: an attempt to
// overwrite one is a no-op, which is the storage-level backstop for the
// orchestrator's terminal check under concurrent continuations.
func (s *JobStorage) SaveJob(ctx context.Context, job *models.SearchJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	var existing models.SearchJob
	err := s.db.Store().Get(job.ID, &existing)
	if err == nil && existing.Status.IsTerminal() {
		s.logger.Debug().
			Str("job_id", job.ID).
			Str("status", string(existing.Status)).
			Msg("Skipping write to terminal job")
		return nil
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to check existing job: %w", err)
	}

	job.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(job.ID, *job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.SearchJob, error) {
	var job models.SearchJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.SearchJob, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.OwnerID != "" {
			query = query.And("OwnerID").Eq(opts.OwnerID)
		}
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.Platform != "" {
			query = query.And("Platform").Eq(opts.Platform)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.SearchJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.SearchJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.SearchJob, error) {
	var jobs []models.SearchJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to get jobs by status: %w", err)
	}

	result := make([]*models.SearchJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}
