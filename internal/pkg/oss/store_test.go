package oss

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qs3c/repo_scan_server/config"
)

type flakyStore struct {
	uploadErr error
	uploaded  map[string][]byte
	deleted   int
}

func (s *flakyStore) UploadReport(key string, data []byte) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if s.uploaded == nil {
		s.uploaded = map[string][]byte{}
	}
	s.uploaded[key] = data
	return "https://bucket/" + key, nil
}

func (s *flakyStore) DeleteReportsBefore(cutoff time.Time) (int, error) {
	return s.deleted, nil
}

func TestOpenStores_LocalOnly(t *testing.T) {
	dir := t.TempDir()
	stores, err := OpenStores(&config.StorageConfig{ReportDir: dir}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Nil(t, stores.Remote)
	assert.Same(t, stores.Local, stores.Primary)
}

func TestOpenStores_WithOSS(t *testing.T) {
	stores, err := OpenStores(&config.StorageConfig{
		ReportDir: t.TempDir(),
		OSS: config.OSSConfig{
			Endpoint:        "oss-cn-hangzhou.aliyuncs.com",
			AccessKeyID:     "id",
			AccessKeySecret: "secret",
			BucketName:      "reports-bucket",
		},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NotNil(t, stores.Remote)
	assert.IsType(t, &FallbackStore{}, stores.Primary)
}

func TestFallbackStore_Upload(t *testing.T) {
	remote := &flakyStore{}
	local := NewLocalStore(t.TempDir())
	store := NewFallbackStore(remote, local, zaptest.NewLogger(t))

	url, err := store.UploadReport(ReportKey("shop", "job-1"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/reports/shop/job-1.json", url)

	remote.uploadErr = errors.New("connection reset")
	url, err = store.UploadReport(ReportKey("shop", "job-2"), []byte(`{"n":2}`))
	require.NoError(t, err)
	assert.Equal(t, "local://shop/job-2.json", url)

	data, err := local.Open(url)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(data))
}

func TestFallbackStore_DeleteReportsBefore(t *testing.T) {
	remote := &flakyStore{deleted: 3}
	local := NewLocalStore(t.TempDir())
	_, err := local.UploadReport(ReportKey("shop", "job-1"), []byte(`{}`))
	require.NoError(t, err)

	store := NewFallbackStore(remote, local, zaptest.NewLogger(t))
	removed, err := store.DeleteReportsBefore(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, removed)
}
