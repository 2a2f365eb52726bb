package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

func newProjectService(t *testing.T, db *gorm.DB) *ProjectService {
	return NewProjectService(repository.NewProjectRepository(db), zaptest.NewLogger(t))
}

func TestProjectService_GetAnalysis(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	project := testutil.TestProject(t, db, testutil.WithName("shop"))
	require.NoError(t, db.Create(&model.ProjectSnapshot{
		ProjectID: project.ID,
		Payload:   `{"project_id":0,"project_name":"shop","classes":[],"findings":[{"file_path":"stale.yml","line_number":1}]}`,
	}).Error)
	ignored := testutil.TestFinding(t, db, project.ID, "a.yml", 3, true)
	testutil.TestFinding(t, db, project.ID, "a.yml", 1, false)

	svc := newProjectService(t, db)

	data, err := svc.GetAnalysis(project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, data.ProjectID)
	assert.Equal(t, "shop", data.ProjectName)

	require.Len(t, data.Findings, 2)
	assert.Equal(t, 1, data.Findings[0].LineNumber)
	assert.NotZero(t, data.Findings[0].ID)
	assert.Equal(t, ignored.ID, data.Findings[1].ID)
	assert.True(t, data.Findings[1].Ignored)
}

func TestProjectService_GetAnalysis_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newProjectService(t, db)

	_, err := svc.GetAnalysis(404)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	// a project row without a snapshot has no outcome yet
	project := testutil.TestProject(t, db)
	_, err = svc.GetAnalysis(project.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectService_GetAnalysis_CorruptSnapshot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	project := testutil.TestProject(t, db)
	require.NoError(t, db.Create(&model.ProjectSnapshot{ProjectID: project.ID, Payload: "{"}).Error)

	_, err := newProjectService(t, db).GetAnalysis(project.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectService_ListLogStatements(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	project := testutil.TestProject(t, db)
	testutil.TestLogStatement(t, db, project.ID, "INFO", true)
	testutil.TestLogStatement(t, db, project.ID, "INFO", false)
	testutil.TestLogStatement(t, db, project.ID, "DEBUG", false)

	svc := newProjectService(t, db)

	logs, total, err := svc.ListLogStatements(project.ID, 0, 0, "info", false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	logs, total, err = svc.ListLogStatements(project.ID, 1, 20, "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, logs[0].PiiRisk)

	_, _, err = svc.ListLogStatements(404, 1, 20, "", false)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectService_FindingsLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	project := testutil.TestProject(t, db)
	finding := testutil.TestFinding(t, db, project.ID, "a.yml", 1, false)
	testutil.TestFinding(t, db, project.ID, "b.yml", 2, false)

	svc := newProjectService(t, db)

	updated, err := svc.SetFindingIgnored(project.ID, finding.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Ignored)

	findings, total, err := svc.ListFindings(project.ID, 1, 500, "pii", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "b.yml", findings[0].FilePath)

	_, total, err = svc.ListFindings(project.ID, 1, 20, "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, err = svc.SetFindingIgnored(project.ID, 9999, true)
	assert.ErrorIs(t, err, ErrFindingNotFound)

	other := testutil.TestProject(t, db)
	_, err = svc.SetFindingIgnored(other.ID, finding.ID, false)
	assert.ErrorIs(t, err, ErrFindingNotFound)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, defaultPageSize},
		{-2, 10, 1, 10},
		{3, 1000, 3, maxPageSize},
	}
	for _, tt := range tests {
		page, size := normalizePage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantSize, size)
	}
}
