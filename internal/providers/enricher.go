package providers

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/models"
)

// ProfileLookup fetches the full profile for one creator. Used by the
// enricher for secondary bio/contact lookups.
type ProfileLookup func(ctx context.Context, record models.CreatorRecord) (models.CreatorRecord, error)

// Enricher runs secondary profile lookups over a page of freshly normalized
// records with bounded concurrency, joining all lookups before returning.
// A failed or missing lookup degrades gracefully: the record passes through
// unenriched and the page still succeeds.
type Enricher struct {
	lookup      ProfileLookup
	cache       *ProfileCache
	concurrency int
	logger      arbor.ILogger
}

// NewEnricher creates an enricher. cache may be nil to disable caching.
func NewEnricher(lookup ProfileLookup, cache *ProfileCache, concurrency int, logger arbor.ILogger) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Enricher{
		lookup:      lookup,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Enrich returns the records with profile data filled in where a lookup
// succeeded. Order is preserved.
func (e *Enricher) Enrich(ctx context.Context, records []models.CreatorRecord) []models.CreatorRecord {
	if e.lookup == nil || len(records) == 0 {
		return records
	}

	out := make([]models.CreatorRecord, len(records))
	copy(out, records)

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i := range out {
		if out[i].Enriched {
			continue
		}

		if e.cache != nil {
			if cached, ok := e.cache.Get(out[i].Key()); ok {
				out[i] = mergeEnrichment(out[i], cached)
				continue
			}
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			enriched, err := e.lookup(ctx, out[idx])
			if err != nil {
				e.logger.Debug().
					Err(err).
					Str("handle", out[idx].Handle).
					Str("platform", string(out[idx].Platform)).
					Msg("Profile enrichment failed, keeping base record")
				return
			}

			enriched.Enriched = true
			out[idx] = mergeEnrichment(out[idx], enriched)
			if e.cache != nil {
				e.cache.Put(out[idx])
			}
		}(i)
	}

	wg.Wait()
	return out
}

// mergeEnrichment overlays profile fields from the enriched record onto the
// base record while keeping the base record's search attribution.
func mergeEnrichment(base, enriched models.CreatorRecord) models.CreatorRecord {
	merged := base
	if enriched.Bio != "" {
		merged.Bio = enriched.Bio
	}
	if len(enriched.Emails) > 0 {
		merged.Emails = enriched.Emails
	}
	if enriched.FollowerCount != nil {
		merged.FollowerCount = enriched.FollowerCount
	}
	if enriched.AvatarURL != "" {
		merged.AvatarURL = enriched.AvatarURL
	}
	if enriched.DisplayName != "" {
		merged.DisplayName = enriched.DisplayName
	}
	merged.Enriched = enriched.Enriched
	return merged
}
