// -----------------------------------------------------------------------
// Continuation - Queue message that resumes a job
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoMessage is returned when the continuation queue is empty.
var ErrNoMessage = errors.New("no messages in queue")

// MessageTypeContinuation is the only message type the worker pool currently
// dispatches; kept as a field so the transport stays generic.
const MessageTypeContinuation = "continuation"

// Continuation tells the orchestrator to run one more unit of work for a job.
// It deliberately carries nothing but the job ID: all other state is re-read
// from the job store on arrival, so redelivered or stale messages cannot
// inject outdated progress.
type Continuation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewContinuation creates a continuation message for a job.
func NewContinuation(jobID string) *Continuation {
	return &Continuation{
		ID:        uuid.New().String(),
		Type:      MessageTypeContinuation,
		JobID:     jobID,
		CreatedAt: time.Now(),
	}
}
