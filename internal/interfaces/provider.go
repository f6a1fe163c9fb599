package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// FetchRequest describes one unit of work against an upstream discovery API:
// a single page for a single keyword or target handle.
type FetchRequest struct {
	Platform models.Platform
	Mode     models.SearchMode

	// Keyword mode
	Keyword string

	// Similar mode
	TargetHandle string

	// Cursor is the provider-specific continuation token from the previous
	// page, empty for the first page.
	Cursor string

	// Limit is how many results this call should aim for. Providers may
	// return fewer.
	Limit int
}

// Page is the normalized result of one page fetch.
type Page struct {
	Items      []models.CreatorRecord
	NextCursor string
	HasMore    bool
}

// Provider fetches and normalizes one page of upstream results for one
// platform and search mode. FetchPage performs a single network call bounded
// by the context deadline and must not retry internally; retry and attempt
// accounting belong to the retry controller so limits stay centralized.
type Provider interface {
	Platform() models.Platform
	Mode() models.SearchMode
	FetchPage(ctx context.Context, req FetchRequest) (*Page, error)
}

// Enricher is an optional secondary lookup a provider can run over freshly
// normalized records (profile bio, contact email). Implementations bound
// their own concurrency and degrade gracefully: a failed lookup returns the
// record unenriched, never an error for the whole page.
type Enricher interface {
	Enrich(ctx context.Context, records []models.CreatorRecord) []models.CreatorRecord
}
