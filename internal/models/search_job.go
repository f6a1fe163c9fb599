// -----------------------------------------------------------------------
// Search Job - Durable record of one creator-discovery request
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SearchMode selects how creators are discovered.
type SearchMode string

const (
	SearchModeKeyword SearchMode = "keyword" // keyword/hashtag search
	SearchModeSimilar SearchMode = "similar" // lookalikes of a target account
)

// JobStatus is the lifecycle state of a search job.
// pending -> processing -> completed | error | timeout
// Terminal states are final: a job is never mutated after reaching one.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
	JobStatusTimeout    JobStatus = "timeout"
)

// IsTerminal returns true for completed, error and timeout.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError || s == JobStatusTimeout
}

// KeywordAllocation tracks one keyword's share of a keyword-mode job.
// Created once per keyword when the job starts; mutated only by the
// planner/orchestrator, never deleted.
type KeywordAllocation struct {
	Keyword     string `json:"keyword"`
	TargetShare int    `json:"target_share"` // initial equal share of the job target
	UniqueFound int    `json:"unique_found"` // unique creators attributed to this keyword
	Attempts    int    `json:"attempts"`
	Cursor      string `json:"cursor,omitempty"` // provider continuation token, opaque
	Exhausted   bool   `json:"exhausted"`        // provider reported no more data
}

// SearchJob is the durable record of one discovery request. It is the sole
// source of truth between continuations; every invocation re-reads it from
// storage and persists it back before scheduling the next step.
type SearchJob struct {
	ID      string `json:"id" badgerhold:"key"`
	OwnerID string `json:"owner_id" badgerhold:"index"`

	// Request
	Platform     Platform   `json:"platform"`
	Mode         SearchMode `json:"mode"`
	Keywords     []string   `json:"keywords,omitempty"`      // keyword mode, ordered
	TargetHandle string     `json:"target_handle,omitempty"` // similar mode
	TargetCount  int        `json:"target_count"`

	// Progress
	Attempts         int                 `json:"attempts"`         // processed continuation attempts
	UniqueFound      int                 `json:"unique_found"`     // cardinality of the accumulated ID set
	Cursor           string              `json:"cursor,omitempty"` // similar-mode continuation token
	SimilarExhausted bool                `json:"similar_exhausted,omitempty"`
	Allocations      []KeywordAllocation `json:"allocations,omitempty"`

	// Lifecycle
	Status    JobStatus  `json:"status" badgerhold:"index"`
	Partial   bool       `json:"partial"` // completed below target because providers ran dry
	Error     string     `json:"error,omitempty"`
	TimeoutAt time.Time  `json:"timeout_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewSearchJob creates a pending job for the given request. Keyword-mode jobs
// get one allocation per keyword with equal initial shares.
func NewSearchJob(ownerID string, platform Platform, mode SearchMode, keywords []string, targetHandle string, targetCount int, timeout time.Duration) *SearchJob {
	now := time.Now()
	job := &SearchJob{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Platform:     platform,
		Mode:         mode,
		Keywords:     keywords,
		TargetHandle: targetHandle,
		TargetCount:  targetCount,
		Status:       JobStatusPending,
		TimeoutAt:    now.Add(timeout),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if mode == SearchModeKeyword && len(keywords) > 0 {
		share := (targetCount + len(keywords) - 1) / len(keywords) // ceil
		job.Allocations = make([]KeywordAllocation, len(keywords))
		for i, kw := range keywords {
			job.Allocations[i] = KeywordAllocation{Keyword: kw, TargetShare: share}
		}
	}

	return job
}

// Validate checks the request fields of the job.
func (j *SearchJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if !j.Platform.IsValid() {
		return fmt.Errorf("unsupported platform: %s", j.Platform)
	}
	if j.TargetCount <= 0 {
		return fmt.Errorf("target count must be positive")
	}
	switch j.Mode {
	case SearchModeKeyword:
		if len(j.Keywords) == 0 {
			return fmt.Errorf("keyword mode requires at least one keyword")
		}
	case SearchModeSimilar:
		if j.TargetHandle == "" {
			return fmt.Errorf("similar mode requires a target handle")
		}
	default:
		return fmt.Errorf("unsupported search mode: %s", j.Mode)
	}
	return nil
}

// Allocation returns the allocation entry for a keyword, or nil.
func (j *SearchJob) Allocation(keyword string) *KeywordAllocation {
	for i := range j.Allocations {
		if j.Allocations[i].Keyword == keyword {
			return &j.Allocations[i]
		}
	}
	return nil
}

// TargetReached reports whether the job accumulated enough unique creators.
func (j *SearchJob) TargetReached() bool {
	return j.UniqueFound >= j.TargetCount
}

// Exhausted reports whether every unit of work has run out of upstream data.
func (j *SearchJob) Exhausted() bool {
	if j.Mode == SearchModeSimilar {
		return j.SimilarExhausted
	}
	for i := range j.Allocations {
		if !j.Allocations[i].Exhausted {
			return false
		}
	}
	return len(j.Allocations) > 0
}

// ProgressPercent is the true completion ratio, rounded normally and capped
// at 100. Never artificially floored.
func (j *SearchJob) ProgressPercent() int {
	if j.TargetCount <= 0 {
		return 0
	}
	pct := int(float64(j.UniqueFound)/float64(j.TargetCount)*100 + 0.5)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// MarkProcessing transitions a pending job to processing.
func (j *SearchJob) MarkProcessing() {
	if j.Status == JobStatusPending {
		j.Status = JobStatusProcessing
		now := time.Now()
		j.StartedAt = &now
	}
	j.UpdatedAt = time.Now()
}

// MarkTerminal moves the job to a terminal status. No-op if already terminal;
// terminal states are monotonic.
func (j *SearchJob) MarkTerminal(status JobStatus, errDetail string) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = status
	if errDetail != "" {
		j.Error = errDetail
	}
	now := time.Now()
	j.EndedAt = &now
	j.UpdatedAt = now
}
