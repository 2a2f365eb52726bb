package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/repo_scan_server/internal/model"
)

// TestProject creates a project row.
func TestProject(t *testing.T, db *gorm.DB, opts ...func(*model.Project)) *model.Project {
	t.Helper()

	n := time.Now().UnixNano()
	now := time.Now()
	project := &model.Project{
		RepoURL:        fmt.Sprintf("https://github.com/example/repo-%d", n),
		Name:           fmt.Sprintf("repo-%d", n%10000),
		LastAnalyzedAt: &now,
	}

	for _, opt := range opts {
		opt(project)
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}

	return project
}

// WithRepoURL sets the project repository URL.
func WithRepoURL(url string) func(*model.Project) {
	return func(p *model.Project) {
		p.RepoURL = url
	}
}

// WithName sets the project name.
func WithName(name string) func(*model.Project) {
	return func(p *model.Project) {
		p.Name = name
	}
}

// TestJob creates a job in the given status.
func TestJob(t *testing.T, db *gorm.DB, repoURL, status string) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		RepoURL:       repoURL,
		Status:        status,
		StatusMessage: model.MsgQueued,
	}
	if status == model.JobRunning {
		started := time.Now()
		job.StatusMessage = model.MsgRunning
		job.StartedAt = &started
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// TestFinding creates a finding of a project.
func TestFinding(t *testing.T, db *gorm.DB, projectID int64, path string, line int, ignored bool) *model.PiiPciFinding {
	t.Helper()

	finding := &model.PiiPciFinding{
		ProjectID:  projectID,
		FilePath:   path,
		LineNumber: line,
		Snippet:    "ssn=***",
		MatchType:  model.FindingPII,
		Severity:   model.SeverityMedium,
		RuleID:     "pii-ssn-name",
		Ignored:    ignored,
	}

	if err := db.Create(finding).Error; err != nil {
		t.Fatalf("Failed to create test finding: %v", err)
	}

	return finding
}

// TestLogStatement creates a log statement of a project.
func TestLogStatement(t *testing.T, db *gorm.DB, projectID int64, level string, pii bool) *model.LogStatement {
	t.Helper()

	line := 10
	stmt := &model.LogStatement{
		ProjectID:       projectID,
		ClassName:       "com.acme.UserService",
		FilePath:        "src/main/java/com/acme/UserService.java",
		LogLevel:        level,
		LineNumber:      &line,
		MessageTemplate: "Loaded user {}",
		Variables:       model.StringArray{"id"},
		PiiRisk:         pii,
	}

	if err := db.Create(stmt).Error; err != nil {
		t.Fatalf("Failed to create test log statement: %v", err)
	}

	return stmt
}
