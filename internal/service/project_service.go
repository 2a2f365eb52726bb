package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/repository"
)

// ProjectService serves the persisted outcome of analyzed projects.
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	log         *zap.Logger
}

func NewProjectService(projectRepo *repository.ProjectRepository, log *zap.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		log:         log,
	}
}

func (s *ProjectService) GetProject(projectID int64) (*model.Project, error) {
	project, err := s.projectRepo.GetByID(projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	return project, err
}

// GetAnalysis returns the latest outcome of a project. Findings are read
// back from the table so ids and ignored flags reflect later edits.
func (s *ProjectService) GetAnalysis(projectID int64) (*dto.ParsedDataResponse, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.projectRepo.GetSnapshot(project.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	var data dto.ParsedDataResponse
	if err := json.Unmarshal([]byte(snapshot.Payload), &data); err != nil {
		return nil, fmt.Errorf("corrupt snapshot for project %d: %w", project.ID, err)
	}
	data.ProjectID = project.ID

	findings, err := s.projectRepo.ListAllFindings(project.ID)
	if err != nil {
		return nil, err
	}
	data.Findings = make([]dto.FindingSummary, 0, len(findings))
	for _, f := range findings {
		data.Findings = append(data.Findings, findingSummary(f))
	}
	return &data, nil
}

func (s *ProjectService) ListLogStatements(projectID int64, page, pageSize int, level string, riskyOnly bool) ([]*model.LogStatement, int64, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.projectRepo.ListLogStatements(projectID, page, pageSize, strings.ToUpper(strings.TrimSpace(level)), riskyOnly)
}

func (s *ProjectService) ListFindings(projectID int64, page, pageSize int, matchType string, includeIgnored bool) ([]*model.PiiPciFinding, int64, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.projectRepo.ListFindings(projectID, page, pageSize, strings.ToUpper(strings.TrimSpace(matchType)), includeIgnored)
}

// SetFindingIgnored marks a finding as a false positive, or clears the mark.
func (s *ProjectService) SetFindingIgnored(projectID, findingID int64, ignored bool) (*model.PiiPciFinding, error) {
	finding, err := s.projectRepo.SetFindingIgnored(projectID, findingID, ignored)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFindingNotFound
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("finding updated",
		zap.Int64("project_id", projectID),
		zap.Int64("finding_id", findingID),
		zap.Bool("ignored", ignored))
	return finding, nil
}

func findingSummary(f *model.PiiPciFinding) dto.FindingSummary {
	return dto.FindingSummary{
		ID:         f.ID,
		FilePath:   f.FilePath,
		LineNumber: f.LineNumber,
		Snippet:    f.Snippet,
		MatchType:  f.MatchType,
		Severity:   f.Severity,
		RuleID:     f.RuleID,
		Ignored:    f.Ignored,
	}
}
