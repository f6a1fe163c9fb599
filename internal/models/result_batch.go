package models

import (
	"time"

	"github.com/google/uuid"
)

// ResultBatch is the append-only output of one unit of work: the unique delta
// of creators a single page fetch contributed to a job. Batches are never
// mutated after insert and are owned exclusively by their job. The
// authoritative seen-ID set for a job is the union of creator keys across all
// of its batches.
type ResultBatch struct {
	ID        string          `json:"id" badgerhold:"key"`
	JobID     string          `json:"job_id" badgerhold:"index"`
	Sequence  int             `json:"sequence"` // attempt number that produced this batch
	Keyword   string          `json:"keyword,omitempty"`
	Creators  []CreatorRecord `json:"creators"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewResultBatch creates a batch for one unit of work.
func NewResultBatch(jobID string, sequence int, keyword string, creators []CreatorRecord) *ResultBatch {
	return &ResultBatch{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Sequence:  sequence,
		Keyword:   keyword,
		Creators:  creators,
		CreatedAt: time.Now(),
	}
}

// Keys returns the dedup keys of every creator in the batch.
func (b *ResultBatch) Keys() []CreatorKey {
	keys := make([]CreatorKey, len(b.Creators))
	for i := range b.Creators {
		keys[i] = b.Creators[i].Key()
	}
	return keys
}
