package worker

import (
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/risk"
	"github.com/qs3c/repo_scan_server/internal/scanner"
)

// Pipeline the analysis components shared by the API server and the
// standalone worker.
type Pipeline struct {
	Workspace  *Workspace
	Classifier *risk.Classifier
	Analyzer   *Analyzer
	Processor  *Processor
}

func NewPipeline(
	cfg *config.Config,
	jobRepo *repository.JobRepository,
	projectRepo *repository.ProjectRepository,
	reports ReportStore,
	publisher ProgressPublisher,
	log *zap.Logger,
) *Pipeline {
	ws := NewWorkspace(cfg.Git.WorkspaceRoot, log)
	fetcher := NewFetcher(ws, cfg.Git, log)
	sc := scanner.New(scanner.Options{
		MaxFileBytes:     cfg.Scan.MaxFileBytes,
		UserCodePrefixes: cfg.Scan.UserCodePrefixes,
		TextExtensions:   cfg.Scan.TextExtensions,
	}, log)
	classifier := risk.New(cfg.Scan, log)
	analyzer := NewAnalyzer(ws, fetcher, sc, classifier, projectRepo, reports, cfg.Scan.IncludeNonUserCode, log)

	return &Pipeline{
		Workspace:  ws,
		Classifier: classifier,
		Analyzer:   analyzer,
		Processor:  NewProcessor(jobRepo, analyzer, publisher, log),
	}
}
