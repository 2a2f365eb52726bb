package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/pkg/oss"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

func TestPipeline_RunsJobsThroughPool(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	log := zaptest.NewLogger(t)
	cfg := &config.Config{
		Git:  config.GitConfig{WorkspaceRoot: t.TempDir()},
		Scan: config.ScanConfig{UserCodePrefixes: []string{"com.shop"}},
	}
	jobRepo := repository.NewJobRepository(db)
	publisher := &recordingPublisher{}

	pipeline := NewPipeline(cfg, jobRepo, repository.NewProjectRepository(db), oss.NewLocalStore(t.TempDir()), publisher, log)
	require.NotNil(t, pipeline.Classifier)
	assert.Equal(t, cfg.Git.WorkspaceRoot, pipeline.Workspace.Root())

	src, _ := testutil.TestGitRepo(t, map[string]string{
		"src/main/java/com/shop/OrderController.java": orderController,
	})
	good := testutil.TestJob(t, db, "file://"+src, model.JobQueued)
	bad := testutil.TestJob(t, db, "file:///does/not/exist", model.JobQueued)

	pool := NewPool(pipeline.Processor, 2, 4, log)
	pool.Start()
	for _, job := range []*model.AnalysisJob{good, bad} {
		require.NoError(t, pool.Dispatch(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL}))
	}
	pool.Stop(0)

	stored, err := jobRepo.GetByID(good.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, stored.Status)

	stored, err = jobRepo.GetByID(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
}
