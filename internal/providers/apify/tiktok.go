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

// TikTokSearchProvider discovers TikTok creators by keyword. The search actor
// returns videos; the adapter lifts the distinct authors out of each page.
type TikTokSearchProvider struct {
	client  *Client
	actorID string
	logger  arbor.ILogger
}

// NewTikTokSearchProvider creates the keyword-mode TikTok adapter.
func NewTikTokSearchProvider(client *Client, actorID string, logger arbor.ILogger) *TikTokSearchProvider {
	return &TikTokSearchProvider{
		client:  client,
		actorID: actorID,
		logger:  logger,
	}
}

func (p *TikTokSearchProvider) Platform() models.Platform {
	return models.PlatformTikTok
}

func (p *TikTokSearchProvider) Mode() models.SearchMode {
	return models.SearchModeKeyword
}

func (p *TikTokSearchProvider) FetchPage(ctx context.Context, req interfaces.FetchRequest) (*interfaces.Page, error) {
	if req.Keyword == "" {
		return nil, providers.NewTerminalError("keyword is required", nil)
	}

	offset := parseOffsetCursor(req.Cursor)
	input := searchInput{
		Search:       req.Keyword,
		ResultsLimit: req.Limit,
		Offset:       offset,
	}

	var videos []tiktokVideo
	if err := p.client.RunActorSync(ctx, p.actorID, input, &videos); err != nil {
		return nil, fmt.Errorf("tiktok search for %q failed: %w", req.Keyword, err)
	}

	// Several videos per page share an author; collapse to first sighting.
	// Cross-page dedup stays the ledger's job.
	seen := make(map[string]struct{}, len(videos))
	records := make([]models.CreatorRecord, 0, len(videos))
	for _, video := range videos {
		if _, dup := seen[video.Author.ID]; dup {
			continue
		}
		record, err := normalizeTikTokAuthor(video, req.Keyword)
		if err != nil {
			p.logger.Debug().Err(err).Str("keyword", req.Keyword).Msg("Skipping malformed video item")
			continue
		}
		seen[video.Author.ID] = struct{}{}
		records = append(records, record)
	}

	hasMore := len(videos) >= req.Limit && req.Limit > 0
	page := &interfaces.Page{
		Items:   records,
		HasMore: hasMore,
	}
	if hasMore {
		page.NextCursor = offsetCursor(offset + len(videos))
	}
	return page, nil
}

// normalizeTikTokAuthor converts a raw video item's author into the common
// creator shape. Pure function, no I/O.
func normalizeTikTokAuthor(video tiktokVideo, keyword string) (models.CreatorRecord, error) {
	author := video.Author
	if author.ID == "" || author.UniqueID == "" {
		return models.CreatorRecord{}, fmt.Errorf("video missing author id or unique id")
	}

	record := models.CreatorRecord{
		Platform:      models.PlatformTikTok,
		SourceID:      author.ID,
		Handle:        author.UniqueID,
		DisplayName:   author.Nickname,
		FollowerCount: author.FollowerCount,
		AvatarURL:     author.AvatarThumb,
		Bio:           author.Signature,
		Verified:      author.Verified,
		Keyword:       keyword,
		Engagement: models.EngagementStats{
			AvgLikes: video.DiggCount,
			AvgViews: video.PlayCount,
		},
		DiscoveredAt: time.Now(),
	}
	record.Emails = extractEmails(author.Signature)
	return record, nil
}
