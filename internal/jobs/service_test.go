package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/providers"
	storagebadger "github.com/ternarybob/reperio/internal/storage/badger"
)

type fakeJobStorage struct {
	jobs map[string]*models.SearchJob
}

func newFakeJobStorage() *fakeJobStorage {
	return &fakeJobStorage{jobs: make(map[string]*models.SearchJob)}
}

func (f *fakeJobStorage) SaveJob(ctx context.Context, job *models.SearchJob) error {
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStorage) GetJob(ctx context.Context, jobID string) (*models.SearchJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, storagebadger.ErrJobNotFound)
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.SearchJob, error) {
	var out []*models.SearchJob
	for _, job := range f.jobs {
		if opts != nil && opts.OwnerID != "" && job.OwnerID != opts.OwnerID {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeJobStorage) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.SearchJob, error) {
	var out []*models.SearchJob
	for _, job := range f.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

type fakeBatchStorage struct {
	batches map[string][]*models.ResultBatch
}

func newFakeBatchStorage() *fakeBatchStorage {
	return &fakeBatchStorage{batches: make(map[string][]*models.ResultBatch)}
}

func (f *fakeBatchStorage) SaveBatch(ctx context.Context, batch *models.ResultBatch) error {
	f.batches[batch.JobID] = append(f.batches[batch.JobID], batch)
	return nil
}

func (f *fakeBatchStorage) ListBatches(ctx context.Context, jobID string) ([]*models.ResultBatch, error) {
	return f.batches[jobID], nil
}

func (f *fakeBatchStorage) SeenKeys(ctx context.Context, jobID string) (map[models.CreatorKey]struct{}, error) {
	keys := make(map[models.CreatorKey]struct{})
	for _, batch := range f.batches[jobID] {
		for _, key := range batch.Keys() {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

type fakeQueue struct {
	enqueued []*models.Continuation
}

func (f *fakeQueue) Enqueue(ctx context.Context, msg *models.Continuation) error {
	f.enqueued = append(f.enqueued, msg)
	return nil
}

func (f *fakeQueue) EnqueueDelayed(ctx context.Context, msg *models.Continuation, delay time.Duration) error {
	f.enqueued = append(f.enqueued, msg)
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context) (*models.Continuation, func() error, error) {
	return nil, nil, models.ErrNoMessage
}

type noopProvider struct {
	platform models.Platform
	mode     models.SearchMode
}

func (p *noopProvider) Platform() models.Platform { return p.platform }
func (p *noopProvider) Mode() models.SearchMode   { return p.mode }
func (p *noopProvider) FetchPage(ctx context.Context, req interfaces.FetchRequest) (*interfaces.Page, error) {
	return &interfaces.Page{}, nil
}

func newTestService(t *testing.T) (*Service, *fakeJobStorage, *fakeBatchStorage, *fakeQueue) {
	t.Helper()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(&noopProvider{platform: models.PlatformInstagram, mode: models.SearchModeKeyword}))
	require.NoError(t, registry.Register(&noopProvider{platform: models.PlatformInstagram, mode: models.SearchModeSimilar}))

	jobs := newFakeJobStorage()
	batches := newFakeBatchStorage()
	queue := &fakeQueue{}
	resolver := common.NewSettingsResolver(common.NewDefaultConfig(), nil, nil)

	svc := NewService(jobs, batches, queue, registry, resolver, arbor.NewLogger())
	return svc, jobs, batches, queue
}

func TestCreateJob_PersistsAndEnqueues(t *testing.T) {
	svc, jobs, _, queue := newTestService(t)

	job, err := svc.CreateJob(context.Background(), &CreateRequest{
		OwnerID:     "owner-1",
		Platform:    "Instagram", // case-normalized
		Mode:        "keyword",
		Keywords:    []string{" surfing ", "Surfing", "yoga", ""},
		TargetCount: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PlatformInstagram, job.Platform)
	assert.Equal(t, models.JobStatusPending, job.Status)
	// Blanks and case-insensitive duplicates dropped.
	assert.Equal(t, []string{"surfing", "yoga"}, job.Keywords)
	assert.Len(t, job.Allocations, 2)

	stored, err := jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, stored.ID)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].JobID)
}

func TestCreateJob_Validation(t *testing.T) {
	svc, _, _, queue := newTestService(t)

	tests := []struct {
		name string
		req  *CreateRequest
	}{
		{"missing owner", &CreateRequest{Platform: "instagram", Mode: "keyword", Keywords: []string{"a"}, TargetCount: 10}},
		{"bad mode", &CreateRequest{OwnerID: "o", Platform: "instagram", Mode: "fuzzy", Keywords: []string{"a"}, TargetCount: 10}},
		{"zero target", &CreateRequest{OwnerID: "o", Platform: "instagram", Mode: "keyword", Keywords: []string{"a"}}},
		{"keyword mode without keywords", &CreateRequest{OwnerID: "o", Platform: "instagram", Mode: "keyword", TargetCount: 10}},
		{"similar mode without handle", &CreateRequest{OwnerID: "o", Platform: "instagram", Mode: "similar", TargetCount: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}

	assert.Empty(t, queue.enqueued, "rejected requests must not reach the queue")
}

func TestCreateJob_UnsupportedPlatformRejected(t *testing.T) {
	svc, _, _, queue := newTestService(t)

	_, err := svc.CreateJob(context.Background(), &CreateRequest{
		OwnerID:     "o",
		Platform:    "youtube",
		Mode:        "keyword",
		Keywords:    []string{"a"},
		TargetCount: 10,
	})
	assert.Error(t, err)
	assert.Empty(t, queue.enqueued)
}

func TestStatus_ReflectsJobRow(t *testing.T) {
	svc, jobs, _, _ := newTestService(t)

	job, err := svc.CreateJob(context.Background(), &CreateRequest{
		OwnerID:     "o",
		Platform:    "instagram",
		Mode:        "keyword",
		Keywords:    []string{"a"},
		TargetCount: 100,
	})
	require.NoError(t, err)

	job.UniqueFound = 25
	job.Attempts = 3
	require.NoError(t, jobs.SaveJob(context.Background(), job))

	resp, err := svc.Status(context.Background(), job.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, 25, resp.ProcessedUnique)
	assert.Equal(t, 100, resp.Target)
	assert.Equal(t, 25, resp.ProgressPercent)
	assert.Equal(t, 3, resp.Attempts)
	assert.Nil(t, resp.Creators, "creators omitted unless requested")
}

func TestStatus_UnknownJob(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Status(context.Background(), "missing", 0)
	assert.Error(t, err)
}

func TestCreators_ConcatenatesBatchesInOrder(t *testing.T) {
	svc, _, batches, _ := newTestService(t)

	record := func(id string) models.CreatorRecord {
		return models.CreatorRecord{Platform: models.PlatformInstagram, SourceID: id, Handle: "h" + id}
	}

	require.NoError(t, batches.SaveBatch(context.Background(), models.NewResultBatch("job-1", 1, "a", []models.CreatorRecord{record("1"), record("2")})))
	require.NoError(t, batches.SaveBatch(context.Background(), models.NewResultBatch("job-1", 2, "b", []models.CreatorRecord{record("3")})))

	creators, err := svc.Creators(context.Background(), "job-1", 0)
	require.NoError(t, err)
	require.Len(t, creators, 3)
	assert.Equal(t, "1", creators[0].SourceID)
	assert.Equal(t, "3", creators[2].SourceID)

	limited, err := svc.Creators(context.Background(), "job-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
