// -----------------------------------------------------------------------
// Creator Record - Normalized creator shape shared by all providers
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// Platform identifies an upstream discovery platform.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// IsValid returns true if the platform is one we have adapters for.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube:
		return true
	}
	return false
}

// CreatorKey is the dedup identity of a creator: a creator counts once per
// platform regardless of how many pages or keywords returned it.
type CreatorKey struct {
	Platform Platform `json:"platform"`
	SourceID string   `json:"source_id"`
}

func (k CreatorKey) String() string {
	return fmt.Sprintf("%s:%s", k.Platform, k.SourceID)
}

// EngagementStats holds the basic per-creator engagement numbers providers
// expose. All fields are optional; zero means "not reported".
type EngagementStats struct {
	AvgLikes    float64 `json:"avg_likes,omitempty"`
	AvgComments float64 `json:"avg_comments,omitempty"`
	AvgViews    float64 `json:"avg_views,omitempty"`
	Rate        float64 `json:"rate,omitempty"` // engagement rate 0..1
}

// CreatorRecord is the normalized creator regardless of source platform.
// Provider adapters are the only code allowed to know upstream JSON shapes;
// everything downstream of an adapter operates on this struct.
type CreatorRecord struct {
	Platform      Platform        `json:"platform"`
	SourceID      string          `json:"source_id"` // platform-scoped unique ID
	Handle        string          `json:"handle"`
	DisplayName   string          `json:"display_name,omitempty"`
	FollowerCount *int64          `json:"follower_count,omitempty"` // nil when the platform does not expose it
	AvatarURL     string          `json:"avatar_url,omitempty"`
	Bio           string          `json:"bio,omitempty"`
	Emails        []string        `json:"emails,omitempty"`
	Engagement    EngagementStats `json:"engagement"`
	Verified      bool            `json:"verified,omitempty"`
	Keyword       string          `json:"keyword,omitempty"` // term that produced this record
	Enriched      bool            `json:"enriched,omitempty"`
	DiscoveredAt  time.Time       `json:"discovered_at"`
}

// Key returns the dedup identity for this record.
func (c CreatorRecord) Key() CreatorKey {
	return CreatorKey{Platform: c.Platform, SourceID: c.SourceID}
}

// Validate checks the fields every adapter must populate.
func (c *CreatorRecord) Validate() error {
	if c.Platform == "" {
		return fmt.Errorf("creator platform is required")
	}
	if c.SourceID == "" {
		return fmt.Errorf("creator source_id is required")
	}
	if c.Handle == "" {
		return fmt.Errorf("creator handle is required")
	}
	return nil
}
