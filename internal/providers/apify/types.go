package apify

import (
	"regexp"
	"strconv"
	"strings"
)

// Raw item shapes returned by the discovery actors. These structs are the
// only place the upstream JSON is known; everything past normalize operates
// on models.CreatorRecord.

// instagramUser is one item from the Instagram search/similar actors.
type instagramUser struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	FullName       string  `json:"fullName"`
	Biography      string  `json:"biography"`
	FollowersCount *int64  `json:"followersCount"`
	ProfilePicURL  string  `json:"profilePicUrl"`
	Verified       bool    `json:"verified"`
	AvgLikes       float64 `json:"avgLikes"`
	AvgComments    float64 `json:"avgComments"`
	EngagementRate float64 `json:"engagementRate"`
	PublicEmail    string  `json:"publicEmail"`
}

// tiktokAuthor is one item from the TikTok search actor. The actor nests the
// author inside each video result.
type tiktokAuthor struct {
	ID            string `json:"id"`
	UniqueID      string `json:"uniqueId"`
	Nickname      string `json:"nickname"`
	Signature     string `json:"signature"`
	AvatarThumb   string `json:"avatarThumb"`
	Verified      bool   `json:"verified"`
	FollowerCount *int64 `json:"followerCount"`
}

type tiktokVideo struct {
	Author    tiktokAuthor `json:"authorMeta"`
	PlayCount float64      `json:"playCount"`
	DiggCount float64      `json:"diggCount"`
}

// searchInput is the common actor input for keyword discovery.
type searchInput struct {
	Search       string `json:"search"`
	SearchType   string `json:"searchType,omitempty"`
	ResultsLimit int    `json:"resultsLimit"`
	Offset       int    `json:"offset,omitempty"`
}

// similarInput is the actor input for lookalike discovery.
type similarInput struct {
	Username     string `json:"username"`
	ResultsLimit int    `json:"resultsLimit"`
	Offset       int    `json:"offset,omitempty"`
}

// profileInput is the actor input for a single profile enrichment lookup.
type profileInput struct {
	Usernames []string `json:"usernames"`
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// extractEmails pulls contact emails out of free-form bio text.
func extractEmails(texts ...string) []string {
	var emails []string
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, match := range emailPattern.FindAllString(text, -1) {
			normalized := strings.ToLower(match)
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			emails = append(emails, normalized)
		}
	}
	return emails
}

// parseOffsetCursor interprets our numeric offset cursor. Empty means the
// first page. The cursor stays opaque outside this package.
func parseOffsetCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

func offsetCursor(offset int) string {
	return strconv.Itoa(offset)
}
