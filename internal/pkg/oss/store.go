package oss

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
)

// Store is a destination for analysis reports.
type Store interface {
	UploadReport(key string, data []byte) (string, error)
	DeleteReportsBefore(cutoff time.Time) (int, error)
}

// Stores the report destinations configured for this process. Remote is
// nil when OSS is not configured; Primary is where new reports go.
type Stores struct {
	Local   *LocalStore
	Remote  *Client
	Primary Store
}

func OpenStores(cfg *config.StorageConfig, log *zap.Logger) (*Stores, error) {
	s := &Stores{Local: NewLocalStore(cfg.ReportDir)}
	s.Primary = s.Local

	if !Enabled(&cfg.OSS) {
		log.Info("reports stored on local disk", zap.String("dir", cfg.ReportDir))
		return s, nil
	}

	remote, err := NewClient(&cfg.OSS)
	if err != nil {
		return nil, fmt.Errorf("failed to init oss client: %w", err)
	}
	s.Remote = remote
	s.Primary = NewFallbackStore(remote, s.Local, log)
	log.Info("reports stored on oss", zap.String("bucket", cfg.OSS.BucketName))
	return s, nil
}

// FallbackStore uploads to the remote store and keeps the report on local
// disk when that fails, for the reuploader to move later.
type FallbackStore struct {
	remote Store
	local  *LocalStore
	log    *zap.Logger
}

func NewFallbackStore(remote Store, local *LocalStore, log *zap.Logger) *FallbackStore {
	return &FallbackStore{remote: remote, local: local, log: log}
}

func (f *FallbackStore) UploadReport(key string, data []byte) (string, error) {
	url, err := f.remote.UploadReport(key, data)
	if err == nil {
		return url, nil
	}
	f.log.Warn("remote report upload failed, keeping it locally", zap.String("key", key), zap.Error(err))
	return f.local.UploadReport(key, data)
}

// DeleteReportsBefore expires reports in both stores.
func (f *FallbackStore) DeleteReportsBefore(cutoff time.Time) (int, error) {
	remote, err := f.remote.DeleteReportsBefore(cutoff)
	if err != nil {
		return remote, err
	}
	local, err := f.local.DeleteReportsBefore(cutoff)
	return remote + local, err
}
