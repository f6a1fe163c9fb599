// Package ledger computes unique-result deltas across pages and keywords.
// Upstream providers return overlapping results between pages and between
// search terms; every count the service reports is derived from the set of
// distinct creator keys, never from raw per-call sums.
package ledger

import (
	"context"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// MergeResult is the outcome of folding one page into a job's seen-set.
type MergeResult struct {
	// Delta holds the creators not previously seen, in page order.
	Delta []models.CreatorRecord
	// Seen is the updated seen-set including the delta.
	Seen map[models.CreatorKey]struct{}
}

// Merge filters newItems to those whose keys are not in seen and returns the
// delta plus the updated set. The input set is not mutated. Duplicates within
// the page itself also collapse to their first occurrence.
func Merge(seen map[models.CreatorKey]struct{}, newItems []models.CreatorRecord) MergeResult {
	updated := make(map[models.CreatorKey]struct{}, len(seen)+len(newItems))
	for k := range seen {
		updated[k] = struct{}{}
	}

	delta := make([]models.CreatorRecord, 0, len(newItems))
	for _, item := range newItems {
		key := item.Key()
		if _, dup := updated[key]; dup {
			continue
		}
		updated[key] = struct{}{}
		delta = append(delta, item)
	}

	return MergeResult{Delta: delta, Seen: updated}
}

// Rebuild re-derives the authoritative seen-set for a job from its persisted
// result batches. Called at the start of every orchestrator invocation rather
// than trusting in-memory state across invocations: an extra read, but it
// makes merges safe when the transport delivers two continuations for the
// same job concurrently.
func Rebuild(ctx context.Context, batches interfaces.BatchStorage, jobID string) (map[models.CreatorKey]struct{}, error) {
	return batches.SeenKeys(ctx, jobID)
}
