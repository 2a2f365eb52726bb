package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

const testRepoURL = "https://github.com/example/repo"

func TestJobRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	job := &model.AnalysisJob{
		RepoURL:       testRepoURL,
		Status:        model.JobQueued,
		StatusMessage: model.MsgQueued,
	}

	err := repo.Create(job)
	require.NoError(t, err)
	assert.Len(t, job.ID, 36)
}

func TestJobRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	created := testutil.TestJob(t, db, testRepoURL, model.JobQueued)

	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, model.JobQueued, found.Status)
	assert.Equal(t, model.MsgQueued, found.StatusMessage)
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	_, err := repo.GetByID("missing")
	assert.Error(t, err)
}

func TestJobRepository_MarkRunning(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, testRepoURL, model.JobQueued)

	ok, err := repo.MarkRunning(job.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, found.Status)
	assert.Equal(t, model.MsgRunning, found.StatusMessage)
	assert.NotNil(t, found.StartedAt)

	// second claim loses
	ok, err = repo.MarkRunning(job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobRepository_MarkSucceeded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	project := testutil.TestProject(t, db)
	job := testutil.TestJob(t, db, project.RepoURL, model.JobRunning)

	ok, err := repo.MarkSucceeded(job.ID, project.ID, "abc123", time.Now().Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, found.Status)
	assert.Equal(t, model.MsgSucceeded, found.StatusMessage)
	require.NotNil(t, found.ProjectID)
	assert.Equal(t, project.ID, *found.ProjectID)
	assert.Equal(t, "abc123", found.CommitHash)
	assert.NotNil(t, found.CompletedAt)
	assert.GreaterOrEqual(t, found.ElapsedSeconds, 2)
}

func TestJobRepository_MarkFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, testRepoURL, model.JobRunning)

	long := make([]byte, 1500)
	for i := range long {
		long[i] = 'x'
	}

	ok, err := repo.MarkFailed(job.ID, "", string(long), time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, found.Status)
	assert.Equal(t, model.MsgFailed, found.StatusMessage)
	assert.Len(t, found.ErrorMessage, model.MaxErrorMessageLen)
}

func TestJobRepository_TerminalIsFinal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, testRepoURL, model.JobRunning)

	ok, err := repo.MarkFailed(job.ID, model.MsgQueueFull, "queue full", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkSucceeded(job.ID, 1, "abc", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, found.Status)
	assert.Equal(t, model.MsgQueueFull, found.StatusMessage)
	assert.Nil(t, found.ProjectID)
}

func TestJobRepository_ListStale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	stale := testutil.TestJob(t, db, testRepoURL, model.JobRunning)
	testutil.TestJob(t, db, testRepoURL, model.JobSucceeded)

	jobs, err := repo.ListStale(time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stale.ID, jobs[0].ID)

	jobs, err = repo.ListStale(time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobRepository_Touch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	running := testutil.TestJob(t, db, testRepoURL, model.JobRunning)
	done := testutil.TestJob(t, db, testRepoURL, model.JobSucceeded)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&model.AnalysisJob{}).Where("1 = 1").UpdateColumn("updated_at", old).Error)

	ok, err := repo.Touch(running.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Touch(done.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	stale, err := repo.ListStale(time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestJobRepository_CountByStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	testutil.TestJob(t, db, testRepoURL, model.JobQueued)
	testutil.TestJob(t, db, testRepoURL, model.JobQueued)
	testutil.TestJob(t, db, testRepoURL, model.JobFailed)

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.JobQueued])
	assert.Equal(t, int64(1), counts[model.JobFailed])
	assert.Zero(t, counts[model.JobRunning])
}
