package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

type fakeDispatcher struct {
	err  error
	sent []*queue.JobMessage
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, msg *queue.JobMessage) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

func TestJobService_Enqueue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	dispatcher := &fakeDispatcher{}
	svc := NewJobService(repository.NewJobRepository(db), dispatcher, zaptest.NewLogger(t))

	job, err := svc.Enqueue(context.Background(), &dto.SubmitAnalysisRequest{
		RepoURL: "  https://github.com/acme/shop.git ",
		Branch:  "release/1.x",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobQueued, job.Status)
	assert.Equal(t, model.MsgQueued, job.StatusMessage)
	assert.Equal(t, "https://github.com/acme/shop.git", job.RepoURL)

	require.Len(t, dispatcher.sent, 1)
	assert.Equal(t, job.ID, dispatcher.sent[0].JobID)
	assert.Equal(t, "release/1.x", dispatcher.sent[0].Branch)

	stored, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, stored.Status)
	assert.Equal(t, "release/1.x", stored.BranchName)
}

func TestJobService_Enqueue_InvalidInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	dispatcher := &fakeDispatcher{}
	svc := NewJobService(repository.NewJobRepository(db), dispatcher, zaptest.NewLogger(t))

	tests := []struct {
		name   string
		req    dto.SubmitAnalysisRequest
		target error
	}{
		{"blank url", dto.SubmitAnalysisRequest{RepoURL: "   "}, ErrInvalidRepoURL},
		{"bad scheme", dto.SubmitAnalysisRequest{RepoURL: "ftp://example.com/repo"}, ErrInvalidRepoURL},
		{"branch with dots", dto.SubmitAnalysisRequest{RepoURL: "https://github.com/acme/shop", Branch: "a..b"}, ErrInvalidBranch},
		{"branch with space", dto.SubmitAnalysisRequest{RepoURL: "https://github.com/acme/shop", Branch: "my branch"}, ErrInvalidBranch},
		{"branch option", dto.SubmitAnalysisRequest{RepoURL: "https://github.com/acme/shop", Branch: "-f"}, ErrInvalidBranch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			job, err := svc.Enqueue(context.Background(), &req)
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, job)
		})
	}

	assert.Empty(t, dispatcher.sent)
	var count int64
	require.NoError(t, db.Model(&model.AnalysisJob{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestJobService_Enqueue_QueueFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := NewJobService(repository.NewJobRepository(db), &fakeDispatcher{err: queue.ErrQueueFull}, zaptest.NewLogger(t))

	job, err := svc.Enqueue(context.Background(), &dto.SubmitAnalysisRequest{RepoURL: "https://github.com/acme/shop"})
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, model.MsgQueueFull, job.StatusMessage)
	assert.NotNil(t, job.CompletedAt)
}

func TestJobService_Enqueue_DispatchError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := NewJobService(repository.NewJobRepository(db), &fakeDispatcher{err: errors.New("redis down")}, zaptest.NewLogger(t))

	job, err := svc.Enqueue(context.Background(), &dto.SubmitAnalysisRequest{RepoURL: "https://github.com/acme/shop"})
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, model.MsgFailed, job.StatusMessage)
	assert.Contains(t, job.ErrorMessage, "redis down")
}

func TestJobService_GetJob_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := NewJobService(repository.NewJobRepository(db), &fakeDispatcher{}, zaptest.NewLogger(t))

	_, err := svc.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobService_Stats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	testutil.TestJob(t, db, "https://github.com/acme/a", model.JobQueued)
	testutil.TestJob(t, db, "https://github.com/acme/b", model.JobQueued)
	testutil.TestJob(t, db, "https://github.com/acme/c", model.JobRunning)

	svc := NewJobService(repository.NewJobRepository(db), &fakeDispatcher{}, zaptest.NewLogger(t))

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[model.JobQueued])
	assert.Equal(t, int64(1), stats[model.JobRunning])
}

func TestJobStatus(t *testing.T) {
	projectID := int64(3)
	job := &model.AnalysisJob{
		ID:         "job-1",
		RepoURL:    "https://github.com/acme/shop",
		BranchName: "main",
		Status:     model.JobSucceeded,
		ProjectID:  &projectID,
		CommitHash: "abc123",
	}

	resp := JobStatus(job)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "main", resp.BranchName)
	assert.Equal(t, model.JobSucceeded, resp.Status)
	assert.Equal(t, &projectID, resp.ProjectID)
	assert.Equal(t, "abc123", resp.CommitHash)
}
