package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/repo_scan_server/internal/model"
)

var activeStatuses = []string{model.JobQueued, model.JobRunning}

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.AnalysisJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning moves a queued job to RUNNING. It reports false when the job
// was not QUEUED anymore.
func (r *JobRepository) MarkRunning(id string, startedAt time.Time) (bool, error) {
	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.JobQueued).
		Updates(map[string]interface{}{
			"status":         model.JobRunning,
			"status_message": model.MsgRunning,
			"started_at":     startedAt,
		})
	return res.RowsAffected > 0, res.Error
}

// Touch refreshes updated_at of a RUNNING job. It reports false once the
// job left RUNNING.
func (r *JobRepository) Touch(id string, at time.Time) (bool, error) {
	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.JobRunning).
		UpdateColumn("updated_at", at)
	return res.RowsAffected > 0, res.Error
}

// MarkSucceeded records a successful run. Terminal jobs are left untouched.
func (r *JobRepository) MarkSucceeded(id string, projectID int64, commitHash string, completedAt time.Time) (bool, error) {
	return r.finish(id, completedAt, map[string]interface{}{
		"status":         model.JobSucceeded,
		"status_message": model.MsgSucceeded,
		"error_message":  "",
		"project_id":     projectID,
		"commit_hash":    commitHash,
	})
}

// MarkFailed records a failed run with a truncated error detail.
func (r *JobRepository) MarkFailed(id, statusMessage, errMsg string, completedAt time.Time) (bool, error) {
	if statusMessage == "" {
		statusMessage = model.MsgFailed
	}
	return r.finish(id, completedAt, map[string]interface{}{
		"status":         model.JobFailed,
		"status_message": statusMessage,
		"error_message":  model.TruncateError(errMsg),
	})
}

func (r *JobRepository) finish(id string, completedAt time.Time, fields map[string]interface{}) (bool, error) {
	var job model.AnalysisJob
	if err := r.db.Select("id", "created_at", "started_at").Where("id = ?", id).First(&job).Error; err != nil {
		return false, err
	}
	since := job.CreatedAt
	if job.StartedAt != nil {
		since = *job.StartedAt
	}
	fields["completed_at"] = completedAt
	fields["elapsed_seconds"] = int(completedAt.Sub(since).Seconds())

	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// ListStale returns non-terminal jobs last touched before cutoff.
func (r *JobRepository) ListStale(cutoff time.Time, limit int) ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("status IN ? AND updated_at < ?", activeStatuses, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// CountByStatus counts jobs per status.
func (r *JobRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&model.AnalysisJob{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
