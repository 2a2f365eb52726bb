package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/repo_scan_server/internal/model"
)

const insertBatchSize = 200

// AnalysisRecord everything persisted for one successful run
type AnalysisRecord struct {
	RepoURL     string
	ProjectName string
	ReportURL   string
	AnalyzedAt  time.Time
	Classes     []model.ClassMetadata
	Endpoints   []model.ApiEndpoint
	Logs        []model.LogStatement
	Findings    []model.PiiPciFinding
	Snapshot    string
}

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetByID(id int64) (*model.Project, error) {
	var project model.Project
	err := r.db.Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) GetByRepoURL(repoURL string) (*model.Project, error) {
	var project model.Project
	err := r.db.Where("repo_url = ?", repoURL).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// SaveAnalysis upserts the project by repo URL and replaces all of its
// analysis rows and the snapshot in one transaction. Findings a user marked
// ignored stay ignored when the same match shows up again.
func (r *ProjectRepository) SaveAnalysis(rec *AnalysisRecord) (*model.Project, error) {
	var project model.Project
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("repo_url = ?", rec.RepoURL).First(&project).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			project = model.Project{RepoURL: rec.RepoURL}
		case err != nil:
			return err
		}

		analyzedAt := rec.AnalyzedAt
		project.Name = rec.ProjectName
		project.ReportURL = rec.ReportURL
		project.LastAnalyzedAt = &analyzedAt
		if err := tx.Save(&project).Error; err != nil {
			return err
		}

		ignored, err := ignoredFindingKeys(tx, project.ID)
		if err != nil {
			return err
		}

		for _, m := range []interface{}{&model.ClassMetadata{}, &model.ApiEndpoint{}, &model.LogStatement{}, &model.PiiPciFinding{}} {
			if err := tx.Where("project_id = ?", project.ID).Delete(m).Error; err != nil {
				return err
			}
		}

		for i := range rec.Classes {
			rec.Classes[i].ID = 0
			rec.Classes[i].ProjectID = project.ID
		}
		for i := range rec.Endpoints {
			rec.Endpoints[i].ID = 0
			rec.Endpoints[i].ProjectID = project.ID
		}
		for i := range rec.Logs {
			rec.Logs[i].ID = 0
			rec.Logs[i].ProjectID = project.ID
		}
		for i := range rec.Findings {
			f := &rec.Findings[i]
			f.ID = 0
			f.ProjectID = project.ID
			if ignored[findingKey(f)] {
				f.Ignored = true
			}
		}

		if err := createAll(tx, rec.Classes); err != nil {
			return err
		}
		if err := createAll(tx, rec.Endpoints); err != nil {
			return err
		}
		if err := createAll(tx, rec.Logs); err != nil {
			return err
		}
		if err := createAll(tx, rec.Findings); err != nil {
			return err
		}

		snapshot := model.ProjectSnapshot{ProjectID: project.ID, Payload: rec.Snapshot, CreatedAt: analyzedAt}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "created_at"}),
		}).Create(&snapshot).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, insertBatchSize).Error
}

// findingKey identifies a finding across runs by (path, type, rule, snippet).
// The line is left out so a flag survives edits above the match.
func findingKey(f *model.PiiPciFinding) string {
	return f.FilePath + "\x00" + f.MatchType + "\x00" + f.RuleID + "\x00" + f.Snippet
}

func ignoredFindingKeys(tx *gorm.DB, projectID int64) (map[string]bool, error) {
	var rows []model.PiiPciFinding
	err := tx.Where("project_id = ? AND ignored = ?", projectID, true).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(rows))
	for i := range rows {
		keys[findingKey(&rows[i])] = true
	}
	return keys, nil
}

// GetSnapshot returns the latest serialized outcome of a project.
func (r *ProjectRepository) GetSnapshot(projectID int64) (*model.ProjectSnapshot, error) {
	var snapshot model.ProjectSnapshot
	err := r.db.Where("project_id = ?", projectID).First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *ProjectRepository) ListClasses(projectID int64) ([]*model.ClassMetadata, error) {
	var classes []*model.ClassMetadata
	err := r.db.Where("project_id = ?", projectID).Order("fqn ASC").Find(&classes).Error
	return classes, err
}

func (r *ProjectRepository) ListEndpoints(projectID int64) ([]*model.ApiEndpoint, error) {
	var endpoints []*model.ApiEndpoint
	err := r.db.Where("project_id = ?", projectID).Order("id ASC").Find(&endpoints).Error
	return endpoints, err
}

// ListLogStatements pages through the log statements of a project.
func (r *ProjectRepository) ListLogStatements(projectID int64, page, pageSize int, level string, riskyOnly bool) ([]*model.LogStatement, int64, error) {
	var logs []*model.LogStatement
	var total int64

	query := r.db.Model(&model.LogStatement{}).Where("project_id = ?", projectID)
	if level != "" {
		query = query.Where("log_level = ?", level)
	}
	if riskyOnly {
		query = query.Where("pii_risk = ? OR pci_risk = ?", true, true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id ASC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// ListFindings pages through the findings of a project; ignored ones only on request.
func (r *ProjectRepository) ListFindings(projectID int64, page, pageSize int, matchType string, includeIgnored bool) ([]*model.PiiPciFinding, int64, error) {
	var findings []*model.PiiPciFinding
	var total int64

	query := r.db.Model(&model.PiiPciFinding{}).Where("project_id = ?", projectID)
	if matchType != "" {
		query = query.Where("match_type = ?", matchType)
	}
	if !includeIgnored {
		query = query.Where("ignored = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id ASC").Offset(offset).Limit(pageSize).Find(&findings).Error; err != nil {
		return nil, 0, err
	}
	return findings, total, nil
}

// SetFindingIgnored flips the ignored flag of one finding of a project.
func (r *ProjectRepository) SetFindingIgnored(projectID, findingID int64, ignored bool) (*model.PiiPciFinding, error) {
	res := r.db.Model(&model.PiiPciFinding{}).
		Where("id = ? AND project_id = ?", findingID, projectID).
		Update("ignored", ignored)
	if res.Error != nil {
		return nil, res.Error
	}

	var finding model.PiiPciFinding
	if err := r.db.Where("id = ? AND project_id = ?", findingID, projectID).First(&finding).Error; err != nil {
		return nil, err
	}
	return &finding, nil
}

// ListAllFindings returns every finding of a project, ignored ones included.
func (r *ProjectRepository) ListAllFindings(projectID int64) ([]*model.PiiPciFinding, error) {
	var findings []*model.PiiPciFinding
	err := r.db.Where("project_id = ?", projectID).
		Order("file_path ASC, line_number ASC, match_type ASC, rule_id ASC, id ASC").
		Find(&findings).Error
	return findings, err
}

// ListLocalReports returns projects whose report is still on local disk.
func (r *ProjectRepository) ListLocalReports(limit int) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.Where("report_url LIKE ?", "local://%").
		Order("id ASC").
		Limit(limit).
		Find(&projects).Error
	return projects, err
}

// UpdateReportURL replaces the report link only if it still equals oldURL,
// so a newer run's report is not overwritten.
func (r *ProjectRepository) UpdateReportURL(id int64, oldURL, newURL string) (bool, error) {
	res := r.db.Model(&model.Project{}).
		Where("id = ? AND report_url = ?", id, oldURL).
		Update("report_url", newURL)
	return res.RowsAffected > 0, res.Error
}

// ClearReportURLsBefore drops report links of projects last analyzed before
// cutoff, once their reports have expired.
func (r *ProjectRepository) ClearReportURLsBefore(cutoff time.Time) (int64, error) {
	res := r.db.Model(&model.Project{}).
		Where("report_url <> ? AND last_analyzed_at < ?", "", cutoff).
		Update("report_url", "")
	return res.RowsAffected, res.Error
}
