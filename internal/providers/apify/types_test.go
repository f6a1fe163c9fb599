package apify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmails(t *testing.T) {
	t.Run("pulls emails from bio text", func(t *testing.T) {
		emails := extractEmails("collabs: Biz@Example.COM or dm me", "")
		assert.Equal(t, []string{"biz@example.com"}, emails)
	})

	t.Run("dedups across sources case-insensitively", func(t *testing.T) {
		emails := extractEmails("me@site.io", "ME@site.io and other@site.io")
		assert.Equal(t, []string{"me@site.io", "other@site.io"}, emails)
	})

	t.Run("no emails", func(t *testing.T) {
		assert.Empty(t, extractEmails("just vibes", ""))
	})
}

func TestParseOffsetCursor(t *testing.T) {
	assert.Equal(t, 0, parseOffsetCursor(""))
	assert.Equal(t, 150, parseOffsetCursor("150"))
	assert.Equal(t, 0, parseOffsetCursor("garbage"))
	assert.Equal(t, 0, parseOffsetCursor("-5"))

	assert.Equal(t, "150", offsetCursor(150))
}
