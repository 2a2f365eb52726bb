package oss

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps reports on disk when OSS is not configured. URLs use the
// local:// scheme relative to the report directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) UploadReport(key string, data []byte) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(key, reportPrefix))
	path := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save report locally: %w", err)
	}
	return "local://" + filepath.ToSlash(rel), nil
}

// Open resolves a local:// URL produced by UploadReport.
func (s *LocalStore) Open(url string) ([]byte, error) {
	rel, ok := strings.CutPrefix(url, "local://")
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return nil, fmt.Errorf("not a local report url: %q", url)
	}
	return os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(rel)))
}

func (s *LocalStore) DeleteReportsBefore(cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Remove deletes the file behind a local:// URL.
func (s *LocalStore) Remove(url string) error {
	rel, ok := strings.CutPrefix(url, "local://")
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return fmt.Errorf("not a local report url: %q", url)
	}
	return os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel)))
}
