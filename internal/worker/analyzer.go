package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/pkg/metrics"
	"github.com/qs3c/repo_scan_server/internal/pkg/oss"
	"github.com/qs3c/repo_scan_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/risk"
	"github.com/qs3c/repo_scan_server/internal/scanner"
)

// ReportStore archives the JSON report of a run. Implemented by the OSS
// client and the local fallback store.
type ReportStore interface {
	UploadReport(key string, data []byte) (string, error)
}

// AnalysisOutcome the persisted project and the assembled result.
type AnalysisOutcome struct {
	Project *model.Project
	Data    *dto.ParsedDataResponse
}

// Analyzer runs fetch, scan, classify, assemble and persist for one
// repository.
type Analyzer struct {
	ws                 *Workspace
	fetcher            *Fetcher
	scanner            *scanner.Scanner
	classifier         *risk.Classifier
	projectRepo        *repository.ProjectRepository
	reports            ReportStore
	includeNonUserCode bool
	locks              *repoLocks
	log                *zap.Logger
}

func NewAnalyzer(
	ws *Workspace,
	fetcher *Fetcher,
	sc *scanner.Scanner,
	classifier *risk.Classifier,
	projectRepo *repository.ProjectRepository,
	reports ReportStore,
	includeNonUserCode bool,
	log *zap.Logger,
) *Analyzer {
	return &Analyzer{
		ws:                 ws,
		fetcher:            fetcher,
		scanner:            sc,
		classifier:         classifier,
		projectRepo:        projectRepo,
		reports:            reports,
		includeNonUserCode: includeNonUserCode,
		locks:              newRepoLocks(),
		log:                log,
	}
}

// Analyze runs the pipeline for one job. step is called when each stage
// starts. The clone is removed before Analyze returns, whatever the outcome.
func (a *Analyzer) Analyze(ctx context.Context, jobID, repoURL, branch string, step func(string)) (*AnalysisOutcome, error) {
	if step == nil {
		step = func(string) {}
	}

	unlock := a.locks.Lock(repoURL)
	defer unlock()

	step(pubsub.StepCloning)
	clone, err := a.fetcher.Fetch(ctx, repoURL, branch)
	if err != nil {
		return nil, err
	}
	defer a.ws.Destroy(clone.Path)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step(pubsub.StepScanning)
	scan, err := a.scanner.Scan(ctx, clone.Path)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step(pubsub.StepClassifying)
	riskResult, err := a.classifier.Classify(ctx, scan)
	if err != nil {
		return nil, err
	}

	data := AssembleOutcome(OutcomeInput{
		RepoURL:            repoURL,
		Clone:              clone,
		Scan:               scan,
		Risk:               riskResult,
		AnalyzedAt:         time.Now(),
		IncludeNonUserCode: a.includeNonUserCode,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step(pubsub.StepPersisting)
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis result: %w", err)
	}

	reportURL := a.uploadReport(clone.ProjectName, jobID, payload)

	project, err := a.projectRepo.SaveAnalysis(analysisRecord(data, reportURL, string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}
	data.ProjectID = project.ID

	byType := map[string]int{}
	for _, f := range data.Findings {
		byType[f.MatchType]++
	}
	metrics.Findings(byType)

	a.log.Info("analysis finished",
		zap.String("job_id", jobID),
		zap.String("repo_url", repoURL),
		zap.Int64("project_id", project.ID),
		zap.Int("classes", data.Stats.ClassCount),
		zap.Int("endpoints", data.Stats.EndpointCount),
		zap.Int("log_statements", data.Stats.LogCount),
		zap.Int("findings", data.Stats.FindingCount),
		zap.Int("warnings", len(data.Warnings)))

	return &AnalysisOutcome{Project: project, Data: data}, nil
}

// uploadReport archives the report. A failed upload only costs the link.
func (a *Analyzer) uploadReport(projectName, jobID string, payload []byte) string {
	if a.reports == nil {
		return ""
	}
	url, err := a.reports.UploadReport(oss.ReportKey(projectName, jobID), payload)
	if err != nil {
		a.log.Warn("report upload failed", zap.String("job_id", jobID), zap.Error(err))
		return ""
	}
	return url
}
