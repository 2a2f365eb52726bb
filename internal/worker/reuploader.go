package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/pkg/oss"
	"github.com/qs3c/repo_scan_server/internal/repository"
)

const (
	reuploadInterval  = 5 * time.Minute
	reuploadBatchSize = 50
)

// Reuploader moves reports saved locally while OSS was unavailable into
// the bucket.
type Reuploader struct {
	projectRepo *repository.ProjectRepository
	local       *oss.LocalStore
	remote      ReportStore
	log         *zap.Logger
}

func NewReuploader(
	projectRepo *repository.ProjectRepository,
	local *oss.LocalStore,
	remote ReportStore,
	log *zap.Logger,
) *Reuploader {
	return &Reuploader{
		projectRepo: projectRepo,
		local:       local,
		remote:      remote,
		log:         log,
	}
}

// Start runs once immediately, then every reuploadInterval until ctx is done.
func (r *Reuploader) Start(ctx context.Context) {
	r.Run()

	ticker := time.NewTicker(reuploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reuploader stopped")
			return
		case <-ticker.C:
			r.Run()
		}
	}
}

// Run uploads one batch and returns how many reports moved.
func (r *Reuploader) Run() int {
	projects, err := r.projectRepo.ListLocalReports(reuploadBatchSize)
	if err != nil {
		r.log.Warn("reuploader: failed to query local reports", zap.Error(err))
		return 0
	}
	if len(projects) == 0 {
		return 0
	}

	r.log.Info("reuploader: local reports pending", zap.Int("count", len(projects)))

	moved := 0
	for _, p := range projects {
		log := r.log.With(zap.Int64("project_id", p.ID), zap.String("report_url", p.ReportURL))

		data, err := r.local.Open(p.ReportURL)
		if err != nil {
			log.Warn("reuploader: failed to read local report", zap.Error(err))
			continue
		}

		key := reportKeyFromLocal(p.ReportURL)
		remoteURL, err := r.remote.UploadReport(key, data)
		if err != nil {
			log.Warn("reuploader: upload failed", zap.Error(err))
			continue
		}

		ok, err := r.projectRepo.UpdateReportURL(p.ID, p.ReportURL, remoteURL)
		if err != nil {
			log.Warn("reuploader: failed to update project", zap.Error(err))
			continue
		}
		if !ok {
			// a newer run replaced the report meanwhile
			continue
		}

		if err := r.local.Remove(p.ReportURL); err != nil {
			log.Debug("reuploader: failed to remove local copy", zap.Error(err))
		}
		moved++
		log.Info("reuploader: report moved to OSS", zap.String("url", remoteURL))
	}
	return moved
}

// reportKeyFromLocal maps local://<project>/<job>.json back to its object key.
func reportKeyFromLocal(url string) string {
	return "reports/" + url[len("local://"):]
}
