package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/database"
	"github.com/qs3c/repo_scan_server/internal/pkg/cron"
	"github.com/qs3c/repo_scan_server/internal/pkg/logger"
	"github.com/qs3c/repo_scan_server/internal/pkg/oss"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/worker"
)

var (
	configPath      = flag.String("config", "config.yaml", "path to the config file")
	dryRun          = flag.Bool("dry-run", true, "list what would be removed without removing it")
	workspaceExpire = flag.Int("workspace-expire", 0, "hours to keep clone directories (0 uses config)")
	reportExpire    = flag.Int("report-expire", 0, "days to keep archived reports (0 uses config)")
	staleMinutes    = flag.Int("stale-minutes", 0, "minutes without progress before a job is failed (0 uses config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyOverrides(&cfg.Cleanup)

	logr, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logr.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}

	ws := worker.NewWorkspace(cfg.Git.WorkspaceRoot, logr)
	jobRepo := repository.NewJobRepository(db)

	logr.Info("cleanup starting",
		zap.Bool("dry_run", *dryRun),
		zap.String("workspace_root", ws.Root()),
		zap.Int("workspace_expire_hours", cfg.Cleanup.WorkspaceExpireHours),
		zap.Int("report_expire_days", cfg.Cleanup.ReportExpireDays),
		zap.Int("stale_job_minutes", cfg.Cleanup.StaleJobMinutes))

	if *dryRun {
		preview(ws, jobRepo, cfg.Cleanup, logr)
		logr.Info("dry run, nothing removed; run with -dry-run=false to apply")
		return
	}

	stores, err := oss.OpenStores(&cfg.Storage, logr)
	if err != nil {
		logr.Fatal("failed to open report storage", zap.Error(err))
	}

	sum := cron.NewService(ws, jobRepo, repository.NewProjectRepository(db), stores.Primary, cfg.Cleanup, logr).RunNow()
	logr.Info("cleanup completed",
		zap.Int("workspaces", sum.Workspaces),
		zap.Int("reports", sum.Reports),
		zap.Int("stale_jobs", sum.StaleJobs))
}

func applyOverrides(c *config.CleanupConfig) {
	if *workspaceExpire > 0 {
		c.WorkspaceExpireHours = *workspaceExpire
	}
	if *reportExpire > 0 {
		c.ReportExpireDays = *reportExpire
	}
	if *staleMinutes > 0 {
		c.StaleJobMinutes = *staleMinutes
	}
}

// preview lists expired workspaces and stale jobs.
func preview(ws *worker.Workspace, jobRepo *repository.JobRepository, c config.CleanupConfig, logr *zap.Logger) {
	dirs, err := ws.Stale(time.Duration(c.WorkspaceExpireHours) * time.Hour)
	if err != nil {
		logr.Warn("failed to list workspaces", zap.Error(err))
	}
	var total int64
	for _, dir := range dirs {
		size := dirSize(dir)
		total += size
		logr.Info("expired workspace", zap.String("dir", filepath.Base(dir)), zap.String("size", formatSize(size)))
	}
	logr.Info("workspaces to remove", zap.Int("count", len(dirs)), zap.String("size", formatSize(total)))

	if c.StaleJobMinutes > 0 {
		cutoff := time.Now().Add(-time.Duration(c.StaleJobMinutes) * time.Minute)
		jobs, err := jobRepo.ListStale(cutoff, 1000)
		if err != nil {
			logr.Warn("failed to list stale jobs", zap.Error(err))
		}
		for _, job := range jobs {
			logr.Info("stale job", zap.String("job_id", job.ID), zap.String("status", job.Status), zap.Time("updated_at", job.UpdatedAt))
		}
	}
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
