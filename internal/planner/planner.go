// -----------------------------------------------------------------------
// Keyword Allocation Planner - Decides which term to try next
// -----------------------------------------------------------------------

// Package planner distributes effort across a keyword-mode job's search
// terms. It runs in two phases: a coverage pass that guarantees every keyword
// is tried at least once before any keyword is tried twice, then a refinement
// pass that sends additional attempts to the keyword with the most room to
// grow. Similar-mode jobs bypass the planner; they have a single unit of work.
package planner

import (
	"github.com/ternarybob/reperio/internal/models"
)

// Unit is one plannable unit of work: a single page fetch for one term.
type Unit struct {
	Keyword string
	Cursor  string
	// Limit is how many results this call should aim for, capped by the
	// provider page size.
	Limit int
}

// Planner selects the next unit of work for a keyword-mode job.
type Planner struct {
	pageSize int
}

// New creates a planner bounded by the provider's resolved page size.
func New(pageSize int) *Planner {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Planner{pageSize: pageSize}
}

// Next returns the next unit of work, or ok=false when no keyword can
// usefully be tried again (every non-exhausted keyword is either covered and
// outranked, or everything is exhausted). The attempt budget itself is the
// orchestrator's concern; the planner only ranks keywords.
func (p *Planner) Next(job *models.SearchJob) (Unit, bool) {
	if job.Mode != models.SearchModeKeyword {
		if job.SimilarExhausted {
			return Unit{}, false
		}
		return Unit{Cursor: job.Cursor, Limit: p.callLimit(job.TargetCount - job.UniqueFound)}, true
	}

	if alloc := p.coverageCandidate(job); alloc != nil {
		// Phase 1: per-call target is the keyword's equal share of the goal.
		return Unit{
			Keyword: alloc.Keyword,
			Cursor:  alloc.Cursor,
			Limit:   p.callLimit(alloc.TargetShare),
		}, true
	}

	if alloc := p.refinementCandidate(job); alloc != nil {
		// Phase 2: aim for whatever is still missing from the overall goal.
		return Unit{
			Keyword: alloc.Keyword,
			Cursor:  alloc.Cursor,
			Limit:   p.callLimit(job.TargetCount - job.UniqueFound),
		}, true
	}

	return Unit{}, false
}

// coverageCandidate returns the untried keyword with the fewest attempts,
// ties broken by original keyword order. Guarantees full coverage before any
// keyword gets a second attempt.
func (p *Planner) coverageCandidate(job *models.SearchJob) *models.KeywordAllocation {
	var best *models.KeywordAllocation
	for i := range job.Allocations {
		alloc := &job.Allocations[i]
		if alloc.Attempts > 0 || alloc.Exhausted {
			continue
		}
		if best == nil || alloc.Attempts < best.Attempts {
			best = alloc
		}
	}
	return best
}

// refinementCandidate returns the non-exhausted keyword with the lowest
// uniqueFound (most room to grow), ties broken by fewest attempts, then by
// original order.
func (p *Planner) refinementCandidate(job *models.SearchJob) *models.KeywordAllocation {
	var best *models.KeywordAllocation
	for i := range job.Allocations {
		alloc := &job.Allocations[i]
		if alloc.Exhausted {
			continue
		}
		if best == nil {
			best = alloc
			continue
		}
		if alloc.UniqueFound < best.UniqueFound ||
			(alloc.UniqueFound == best.UniqueFound && alloc.Attempts < best.Attempts) {
			best = alloc
		}
	}
	return best
}

func (p *Planner) callLimit(want int) int {
	if want <= 0 || want > p.pageSize {
		return p.pageSize
	}
	return want
}
