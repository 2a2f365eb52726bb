package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job lifecycle states. A job moves QUEUED -> RUNNING -> SUCCEEDED|FAILED
// and is never modified after reaching a terminal state.
const (
	JobQueued    = "QUEUED"
	JobRunning   = "RUNNING"
	JobSucceeded = "SUCCEEDED"
	JobFailed    = "FAILED"
)

// Fixed status messages stored on the job.
const (
	MsgQueued    = "Queued for analysis"
	MsgRunning   = "Running analysis"
	MsgSucceeded = "Analysis completed"
	MsgFailed    = "Analysis failed"
	MsgQueueFull = "Worker queue is full"

	// MsgInterrupted the worker running the job went away
	MsgInterrupted = "Analysis interrupted"
)

// MaxErrorMessageLen bounds the persisted error detail.
const MaxErrorMessageLen = 1000

type AnalysisJob struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	RepoURL        string     `gorm:"size:500;not null;index" json:"repo_url"`
	BranchName     string     `gorm:"size:200" json:"branch_name,omitempty"`
	Status         string     `gorm:"size:20;not null;default:QUEUED;index" json:"status"`
	StatusMessage  string     `gorm:"size:200" json:"status_message,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	ProjectID      *int64     `gorm:"index" json:"project_id,omitempty"`
	CommitHash     string     `gorm:"size:64" json:"commit_hash,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// BeforeCreate assigns a random id when none was set.
func (j *AnalysisJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the job has finished.
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}

// TruncateError cuts s to MaxErrorMessageLen runes.
func TruncateError(s string) string {
	r := []rune(s)
	if len(r) <= MaxErrorMessageLen {
		return s
	}
	return string(r[:MaxErrorMessageLen])
}
