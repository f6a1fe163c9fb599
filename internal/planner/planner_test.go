package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/reperio/internal/models"
)

func keywordJob(keywords []string, target int) *models.SearchJob {
	return models.NewSearchJob("owner-1", models.PlatformInstagram, models.SearchModeKeyword, keywords, "", target, time.Hour)
}

func TestNext_CoverageBeforeRefinement(t *testing.T) {
	job := keywordJob([]string{"fitness", "yoga", "pilates"}, 300)
	p := New(50)

	// Every keyword must be tried once, in original order, before any
	// keyword gets a second attempt.
	for _, expected := range []string{"fitness", "yoga", "pilates"} {
		unit, ok := p.Next(job)
		require.True(t, ok)
		assert.Equal(t, expected, unit.Keyword)
		job.Allocation(unit.Keyword).Attempts++
	}
}

func TestNext_CoverageUsesTargetShare(t *testing.T) {
	job := keywordJob([]string{"a", "b", "c"}, 300)
	p := New(50)

	unit, ok := p.Next(job)
	require.True(t, ok)
	// ceil(300/3) = 100, capped by page size 50
	assert.Equal(t, 50, unit.Limit)

	small := keywordJob([]string{"a", "b", "c"}, 30)
	unit, ok = New(50).Next(small)
	require.True(t, ok)
	// ceil(30/3) = 10, under the page size
	assert.Equal(t, 10, unit.Limit)
}

func TestNext_RefinementPicksLowestUniqueFound(t *testing.T) {
	job := keywordJob([]string{"a", "b", "c"}, 300)
	for i := range job.Allocations {
		job.Allocations[i].Attempts = 1
	}
	job.Allocations[0].UniqueFound = 40
	job.Allocations[1].UniqueFound = 10
	job.Allocations[2].UniqueFound = 25

	unit, ok := New(50).Next(job)
	require.True(t, ok)
	assert.Equal(t, "b", unit.Keyword)
}

func TestNext_RefinementTieBreaksOnAttempts(t *testing.T) {
	job := keywordJob([]string{"a", "b"}, 100)
	job.Allocations[0].Attempts = 3
	job.Allocations[0].UniqueFound = 10
	job.Allocations[1].Attempts = 1
	job.Allocations[1].UniqueFound = 10

	unit, ok := New(50).Next(job)
	require.True(t, ok)
	assert.Equal(t, "b", unit.Keyword)
}

func TestNext_SkipsExhaustedKeywords(t *testing.T) {
	job := keywordJob([]string{"a", "b"}, 100)
	job.Allocations[0].Exhausted = true

	unit, ok := New(50).Next(job)
	require.True(t, ok)
	assert.Equal(t, "b", unit.Keyword)
}

func TestNext_NoUnitWhenAllExhausted(t *testing.T) {
	job := keywordJob([]string{"a", "b"}, 100)
	for i := range job.Allocations {
		job.Allocations[i].Exhausted = true
		job.Allocations[i].Attempts = 1
	}

	_, ok := New(50).Next(job)
	assert.False(t, ok)
}

func TestNext_RefinementLimitIsRemainingTarget(t *testing.T) {
	job := keywordJob([]string{"a"}, 100)
	job.Allocations[0].Attempts = 1
	job.UniqueFound = 80

	unit, ok := New(50).Next(job)
	require.True(t, ok)
	assert.Equal(t, 20, unit.Limit)
}

func TestNext_CarriesKeywordCursor(t *testing.T) {
	job := keywordJob([]string{"a"}, 100)
	job.Allocations[0].Attempts = 1
	job.Allocations[0].Cursor = "42"

	unit, ok := New(50).Next(job)
	require.True(t, ok)
	assert.Equal(t, "42", unit.Cursor)
}

func TestNext_SimilarMode(t *testing.T) {
	job := models.NewSearchJob("owner-1", models.PlatformInstagram, models.SearchModeSimilar, nil, "somehandle", 60, time.Hour)
	job.Cursor = "30"
	job.UniqueFound = 30

	unit, ok := New(50).Next(job)
	require.True(t, ok)
	assert.Empty(t, unit.Keyword)
	assert.Equal(t, "30", unit.Cursor)
	assert.Equal(t, 30, unit.Limit)

	job.SimilarExhausted = true
	_, ok = New(50).Next(job)
	assert.False(t, ok)
}
