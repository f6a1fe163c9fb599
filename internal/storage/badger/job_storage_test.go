package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func testJob(keywords ...string) *models.SearchJob {
	return models.NewSearchJob("owner-1", models.PlatformInstagram, models.SearchModeKeyword, keywords, "", 50, time.Hour)
}

func TestJobStorage_SaveAndGet(t *testing.T) {
	storage := testManager(t).JobStorage()
	ctx := context.Background()

	job := testJob("fitness", "yoga")
	require.NoError(t, storage.SaveJob(ctx, job))

	loaded, err := storage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
	require.Len(t, loaded.Allocations, 2)
	assert.Equal(t, "fitness", loaded.Allocations[0].Keyword)
}

func TestJobStorage_GetMissing(t *testing.T) {
	storage := testManager(t).JobStorage()

	_, err := storage.GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobStorage_TerminalRowsAreImmutable(t *testing.T) {
	storage := testManager(t).JobStorage()
	ctx := context.Background()

	job := testJob("fitness")
	job.MarkTerminal(models.JobStatusError, "revoked credentials")
	require.NoError(t, storage.SaveJob(ctx, job))

	// A stale in-flight invocation tries to write a completion over the
	// error. The write must be silently dropped.
	stale := *job
	stale.Status = models.JobStatusCompleted
	stale.Error = ""
	stale.UniqueFound = 99
	require.NoError(t, storage.SaveJob(ctx, &stale))

	loaded, err := storage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, loaded.Status)
	assert.Equal(t, "revoked credentials", loaded.Error)
	assert.Zero(t, loaded.UniqueFound)
}

func TestJobStorage_GetJobsByStatus(t *testing.T) {
	storage := testManager(t).JobStorage()
	ctx := context.Background()

	pending := testJob("a")
	processing := testJob("b")
	processing.MarkProcessing()
	done := testJob("c")
	done.MarkTerminal(models.JobStatusCompleted, "")

	for _, job := range []*models.SearchJob{pending, processing, done} {
		require.NoError(t, storage.SaveJob(ctx, job))
	}

	jobs, err := storage.GetJobsByStatus(ctx, models.JobStatusProcessing)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, processing.ID, jobs[0].ID)
}

func TestJobStorage_ListJobsFilters(t *testing.T) {
	storage := testManager(t).JobStorage()
	ctx := context.Background()

	mine := testJob("a")
	theirs := testJob("b")
	theirs.OwnerID = "owner-2"
	require.NoError(t, storage.SaveJob(ctx, mine))
	require.NoError(t, storage.SaveJob(ctx, theirs))

	jobs, err := storage.ListJobs(ctx, &interfaces.JobListOptions{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, mine.ID, jobs[0].ID)

	all, err := storage.ListJobs(ctx, &interfaces.JobListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
