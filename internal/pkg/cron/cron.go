package cron

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/pkg/metrics"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/worker"
)

const staleJobBatch = 100

// ReportExpirer deletes archived reports older than a cutoff.
type ReportExpirer interface {
	DeleteReportsBefore(cutoff time.Time) (int, error)
}

// Summary what one cleanup pass removed.
type Summary struct {
	Workspaces int
	Reports    int
	StaleJobs  int
}

func (s Summary) Total() int {
	return s.Workspaces + s.Reports + s.StaleJobs
}

type Service struct {
	ws          *worker.Workspace
	jobRepo     *repository.JobRepository
	projectRepo *repository.ProjectRepository
	reports     ReportExpirer
	cfg         config.CleanupConfig
	interval    time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	log         *zap.Logger
}

func NewService(
	ws *worker.Workspace,
	jobRepo *repository.JobRepository,
	projectRepo *repository.ProjectRepository,
	reports ReportExpirer,
	cfg config.CleanupConfig,
	log *zap.Logger,
) *Service {
	return &Service{
		ws:          ws,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		reports:     reports,
		cfg:         cfg,
		interval:    time.Hour,
		stopChan:    make(chan struct{}),
		log:         log,
	}
}

// Start runs a cleanup pass every hour until Stop.
func (s *Service) Start() {
	go s.runCleanup()
	s.log.Info("cron service started", zap.Duration("interval", s.interval))
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info("cron service stopped")
	})
}

func (s *Service) runCleanup() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunNow()
		}
	}
}

// RunNow runs every cleanup task once.
func (s *Service) RunNow() Summary {
	sum := Summary{
		Workspaces: s.sweepWorkspaces(),
		Reports:    s.expireReports(),
		StaleJobs:  s.failStaleJobs(),
	}
	if sum.Total() > 0 {
		s.log.Info("cleanup summary",
			zap.Int("workspaces", sum.Workspaces),
			zap.Int("reports", sum.Reports),
			zap.Int("stale_jobs", sum.StaleJobs))
	}
	return sum
}

// sweepWorkspaces removes clone directories left behind by crashed runs.
func (s *Service) sweepWorkspaces() int {
	if s.ws == nil {
		return 0
	}
	hours := s.cfg.WorkspaceExpireHours
	if hours <= 0 {
		hours = 1
	}
	n := s.ws.Sweep(time.Duration(hours) * time.Hour)
	metrics.WorkspacesSwept(n)
	return n
}

func (s *Service) expireReports() int {
	if s.reports == nil || s.cfg.ReportExpireDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.ReportExpireDays)

	n, err := s.reports.DeleteReportsBefore(cutoff)
	if err != nil {
		s.log.Warn("report expiry failed", zap.Error(err))
	}
	if s.projectRepo != nil && n > 0 {
		if _, err := s.projectRepo.ClearReportURLsBefore(cutoff); err != nil {
			s.log.Warn("failed to clear expired report links", zap.Error(err))
		}
	}
	return n
}

// failStaleJobs fails jobs whose worker stopped reporting, so clients do
// not poll forever.
func (s *Service) failStaleJobs() int {
	if s.jobRepo == nil || s.cfg.StaleJobMinutes <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-time.Duration(s.cfg.StaleJobMinutes) * time.Minute)

	jobs, err := s.jobRepo.ListStale(cutoff, staleJobBatch)
	if err != nil {
		s.log.Warn("failed to list stale jobs", zap.Error(err))
		return 0
	}

	failed := 0
	for _, job := range jobs {
		ok, err := s.jobRepo.MarkFailed(job.ID, model.MsgInterrupted, "no progress since "+job.UpdatedAt.Format(time.RFC3339), time.Now())
		if err != nil {
			s.log.Warn("failed to fail stale job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		if ok {
			failed++
			s.log.Warn("stale job failed", zap.String("job_id", job.ID), zap.String("status", job.Status))
		}
	}
	return failed
}
