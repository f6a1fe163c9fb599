package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// BatchStorage implements the append-only ResultBatch store for Badger
type BatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBatchStorage creates a new BatchStorage instance
func NewBatchStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BatchStorage {
	return &BatchStorage{
		db:     db,
		logger: logger,
	}
}

// SaveBatch appends a batch. Batches are write-once; inserting an existing ID
// is an error rather than an overwrite.
func (s *BatchStorage) SaveBatch(ctx context.Context, batch *models.ResultBatch) error {
	if batch == nil || batch.ID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if batch.JobID == "" {
		return fmt.Errorf("batch job ID is required")
	}

	if err := s.db.Store().Insert(batch.ID, *batch); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("batch %s already exists: result batches are immutable", batch.ID)
		}
		return fmt.Errorf("failed to save batch: %w", err)
	}

	s.logger.Trace().
		Str("job_id", batch.JobID).
		Str("batch_id", batch.ID).
		Int("creators", len(batch.Creators)).
		Msg("Result batch appended")
	return nil
}

func (s *BatchStorage) ListBatches(ctx context.Context, jobID string) ([]*models.ResultBatch, error) {
	var batches []models.ResultBatch
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Sequence")
	if err := s.db.Store().Find(&batches, query); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	result := make([]*models.ResultBatch, len(batches))
	for i := range batches {
		result[i] = &batches[i]
	}
	return result, nil
}

// SeenKeys unions creator keys across every batch of a job. The orchestrator
// calls this at the start of each invocation instead of trusting any
// in-memory accumulator, so concurrent deliveries merge safely.
func (s *BatchStorage) SeenKeys(ctx context.Context, jobID string) (map[models.CreatorKey]struct{}, error) {
	batches, err := s.ListBatches(ctx, jobID)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.CreatorKey]struct{})
	for _, batch := range batches {
		for _, key := range batch.Keys() {
			seen[key] = struct{}{}
		}
	}
	return seen, nil
}
