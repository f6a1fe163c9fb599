// -----------------------------------------------------------------------
// Instagram adapters - keyword search, similar-account search, enrichment
// -----------------------------------------------------------------------

package apify

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/providers"
)

// InstagramSearchProvider discovers Instagram creators by keyword.
type InstagramSearchProvider struct {
	client   *Client
	actorID  string
	enricher interfaces.Enricher
	logger   arbor.ILogger
}

// NewInstagramSearchProvider creates the keyword-mode Instagram adapter.
// enricher may be nil to skip profile enrichment.
func NewInstagramSearchProvider(client *Client, actorID string, enricher interfaces.Enricher, logger arbor.ILogger) *InstagramSearchProvider {
	return &InstagramSearchProvider{
		client:   client,
		actorID:  actorID,
		enricher: enricher,
		logger:   logger,
	}
}

func (p *InstagramSearchProvider) Platform() models.Platform {
	return models.PlatformInstagram
}

func (p *InstagramSearchProvider) Mode() models.SearchMode {
	return models.SearchModeKeyword
}

// FetchPage runs the search actor for one page. The cursor is a numeric
// offset into the actor's result stream.
func (p *InstagramSearchProvider) FetchPage(ctx context.Context, req interfaces.FetchRequest) (*interfaces.Page, error) {
	if req.Keyword == "" {
		return nil, providers.NewTerminalError("keyword is required", nil)
	}

	offset := parseOffsetCursor(req.Cursor)
	input := searchInput{
		Search:       req.Keyword,
		SearchType:   "user",
		ResultsLimit: req.Limit,
		Offset:       offset,
	}

	var items []instagramUser
	if err := p.client.RunActorSync(ctx, p.actorID, input, &items); err != nil {
		return nil, fmt.Errorf("instagram search for %q failed: %w", req.Keyword, err)
	}

	records := make([]models.CreatorRecord, 0, len(items))
	for _, item := range items {
		record, err := normalizeInstagramUser(item, req.Keyword)
		if err != nil {
			p.logger.Debug().Err(err).Str("keyword", req.Keyword).Msg("Skipping malformed search item")
			continue
		}
		records = append(records, record)
	}

	if p.enricher != nil {
		records = p.enricher.Enrich(ctx, records)
	}

	// The actor has no explicit paging signal: a short page means the
	// result stream is drained.
	hasMore := len(items) >= req.Limit && req.Limit > 0
	page := &interfaces.Page{
		Items:   records,
		HasMore: hasMore,
	}
	if hasMore {
		page.NextCursor = offsetCursor(offset + len(items))
	}
	return page, nil
}

// InstagramSimilarProvider discovers accounts similar to a target handle.
type InstagramSimilarProvider struct {
	client   *Client
	actorID  string
	enricher interfaces.Enricher
	logger   arbor.ILogger
}

// NewInstagramSimilarProvider creates the similar-mode Instagram adapter.
func NewInstagramSimilarProvider(client *Client, actorID string, enricher interfaces.Enricher, logger arbor.ILogger) *InstagramSimilarProvider {
	return &InstagramSimilarProvider{
		client:   client,
		actorID:  actorID,
		enricher: enricher,
		logger:   logger,
	}
}

func (p *InstagramSimilarProvider) Platform() models.Platform {
	return models.PlatformInstagram
}

func (p *InstagramSimilarProvider) Mode() models.SearchMode {
	return models.SearchModeSimilar
}

func (p *InstagramSimilarProvider) FetchPage(ctx context.Context, req interfaces.FetchRequest) (*interfaces.Page, error) {
	if req.TargetHandle == "" {
		return nil, providers.NewTerminalError("target handle is required", nil)
	}

	offset := parseOffsetCursor(req.Cursor)
	input := similarInput{
		Username:     req.TargetHandle,
		ResultsLimit: req.Limit,
		Offset:       offset,
	}

	var items []instagramUser
	if err := p.client.RunActorSync(ctx, p.actorID, input, &items); err != nil {
		return nil, fmt.Errorf("instagram similar search for %q failed: %w", req.TargetHandle, err)
	}

	// The actor returns an empty first page for handles that don't exist;
	// retrying cannot fix that.
	if offset == 0 && len(items) == 0 {
		return nil, providers.NewTerminalError(fmt.Sprintf("target handle %q not found or has no lookalikes", req.TargetHandle), nil)
	}

	records := make([]models.CreatorRecord, 0, len(items))
	for _, item := range items {
		record, err := normalizeInstagramUser(item, "")
		if err != nil {
			p.logger.Debug().Err(err).Str("target", req.TargetHandle).Msg("Skipping malformed similar item")
			continue
		}
		records = append(records, record)
	}

	if p.enricher != nil {
		records = p.enricher.Enrich(ctx, records)
	}

	hasMore := len(items) >= req.Limit && req.Limit > 0
	page := &interfaces.Page{
		Items:   records,
		HasMore: hasMore,
	}
	if hasMore {
		page.NextCursor = offsetCursor(offset + len(items))
	}
	return page, nil
}

// normalizeInstagramUser converts a raw actor item into the common creator
// shape. Pure function, no I/O.
func normalizeInstagramUser(item instagramUser, keyword string) (models.CreatorRecord, error) {
	if item.ID == "" || item.Username == "" {
		return models.CreatorRecord{}, fmt.Errorf("item missing id or username")
	}

	record := models.CreatorRecord{
		Platform:      models.PlatformInstagram,
		SourceID:      item.ID,
		Handle:        item.Username,
		DisplayName:   item.FullName,
		FollowerCount: item.FollowersCount,
		AvatarURL:     item.ProfilePicURL,
		Bio:           item.Biography,
		Verified:      item.Verified,
		Keyword:       keyword,
		Engagement: models.EngagementStats{
			AvgLikes:    item.AvgLikes,
			AvgComments: item.AvgComments,
			Rate:        item.EngagementRate,
		},
		DiscoveredAt: time.Now(),
	}
	record.Emails = extractEmails(item.PublicEmail, item.Biography)
	return record, nil
}

// NewInstagramProfileLookup returns a ProfileLookup backed by the profile
// actor, suitable for the enricher.
func NewInstagramProfileLookup(client *Client, actorID string) providers.ProfileLookup {
	return func(ctx context.Context, record models.CreatorRecord) (models.CreatorRecord, error) {
		input := profileInput{Usernames: []string{record.Handle}}

		var items []instagramUser
		if err := client.RunActorSync(ctx, actorID, input, &items); err != nil {
			return models.CreatorRecord{}, fmt.Errorf("profile lookup for %q failed: %w", record.Handle, err)
		}
		if len(items) == 0 {
			return models.CreatorRecord{}, fmt.Errorf("profile %q not found", record.Handle)
		}

		enriched, err := normalizeInstagramUser(items[0], record.Keyword)
		if err != nil {
			return models.CreatorRecord{}, err
		}
		return enriched, nil
	}
}
