// -----------------------------------------------------------------------
// Job Service - High-level service for creating and querying search jobs
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/providers"
)

// CreateRequest is the payload for starting a creator search.
type CreateRequest struct {
	OwnerID      string   `json:"owner_id" validate:"required"`
	Platform     string   `json:"platform" validate:"required"`
	Mode         string   `json:"mode" validate:"required,oneof=keyword similar"`
	Keywords     []string `json:"keywords" validate:"omitempty,dive,min=1"`
	TargetHandle string   `json:"target_handle"`
	TargetCount  int      `json:"target_count" validate:"required,min=1"`
}

// StatusResponse is the poll shape for a job.
type StatusResponse struct {
	JobID           string                 `json:"job_id"`
	Platform        string                 `json:"platform"`
	Mode            string                 `json:"mode"`
	Status          string                 `json:"status"`
	ProcessedUnique int                    `json:"processed_unique"`
	Target          int                    `json:"target"`
	ProgressPercent int                    `json:"progress_percent"`
	Attempts        int                    `json:"attempts"`
	Partial         bool                   `json:"partial"`
	Error           string                 `json:"error,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
	Creators        []models.CreatorRecord `json:"creators,omitempty"`
}

// Service provides high-level search job operations.
type Service struct {
	jobs     interfaces.JobStorage
	batches  interfaces.BatchStorage
	queue    interfaces.ContinuationQueue
	registry *providers.Registry
	resolver *common.SettingsResolver
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewService creates a new job service.
func NewService(jobs interfaces.JobStorage, batches interfaces.BatchStorage, queue interfaces.ContinuationQueue, registry *providers.Registry, resolver *common.SettingsResolver, logger arbor.ILogger) *Service {
	return &Service{
		jobs:     jobs,
		batches:  batches,
		queue:    queue,
		registry: registry,
		resolver: resolver,
		logger:   logger,
		validate: validator.New(),
	}
}

// CreateJob validates the request, persists a pending job and enqueues its
// first continuation. The response is the initial job row; all further
// progress is observed by polling or over the event feed.
func (s *Service) CreateJob(ctx context.Context, req *CreateRequest) (*models.SearchJob, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	platform := models.Platform(strings.ToLower(strings.TrimSpace(req.Platform)))
	mode := models.SearchMode(strings.ToLower(strings.TrimSpace(req.Mode)))

	// Reject unsupported platform/mode pairs up front rather than letting
	// the first continuation fail the job.
	if _, err := s.registry.Resolve(platform, mode); err != nil {
		return nil, fmt.Errorf("unsupported search: %w", err)
	}

	rt, err := s.resolver.Resolve(ctx, string(platform))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider settings: %w", err)
	}

	keywords := normalizeKeywords(req.Keywords)
	job := models.NewSearchJob(req.OwnerID, platform, mode, keywords, strings.TrimSpace(req.TargetHandle), req.TargetCount, rt.JobTimeout)
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, models.NewContinuation(job.ID)); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("platform", string(job.Platform)).
		Str("mode", string(job.Mode)).
		Int("keywords", len(job.Allocations)).
		Int("target", job.TargetCount).
		Msg("Search job created and enqueued")

	return job, nil
}

// GetJob returns the raw job row.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.SearchJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListJobs returns jobs matching the options, newest first.
func (s *Service) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.SearchJob, error) {
	return s.jobs.ListJobs(ctx, opts)
}

// Status builds the poll response for a job. creatorLimit caps how many
// discovered creators are inlined; zero omits them entirely.
func (s *Service) Status(ctx context.Context, jobID string, creatorLimit int) (*StatusResponse, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{
		JobID:           job.ID,
		Platform:        string(job.Platform),
		Mode:            string(job.Mode),
		Status:          string(job.Status),
		ProcessedUnique: job.UniqueFound,
		Target:          job.TargetCount,
		ProgressPercent: job.ProgressPercent(),
		Attempts:        job.Attempts,
		Partial:         job.Partial,
		Error:           job.Error,
		CreatedAt:       job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	if creatorLimit > 0 {
		creators, err := s.Creators(ctx, jobID, creatorLimit)
		if err != nil {
			return nil, err
		}
		resp.Creators = creators
	}

	return resp, nil
}

// Creators returns the unique creators discovered so far, in batch order.
// Batches are append-only and already deduplicated, so concatenation in
// sequence order is the job's result set.
func (s *Service) Creators(ctx context.Context, jobID string, limit int) ([]models.CreatorRecord, error) {
	batches, err := s.batches.ListBatches(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list result batches: %w", err)
	}

	var creators []models.CreatorRecord
	for _, batch := range batches {
		creators = append(creators, batch.Creators...)
		if limit > 0 && len(creators) >= limit {
			return creators[:limit], nil
		}
	}
	return creators, nil
}

func normalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var keywords []string
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		keywords = append(keywords, kw)
	}
	return keywords
}
