package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const workspacePrefix = "codescan-"

var unsafeHintChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WorkspaceError a working directory could not be allocated or released.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// Workspace allocates per-run directories under a single root.
type Workspace struct {
	root string
	log  *zap.Logger
}

// NewWorkspace uses os.TempDir when root is empty.
func NewWorkspace(root string, log *zap.Logger) *Workspace {
	if root == "" {
		root = os.TempDir()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Workspace{root: filepath.Clean(root), log: log}
}

func (w *Workspace) Root() string {
	return w.root
}

// Create makes a fresh uniquely named directory.
func (w *Workspace) Create(hint string) (string, error) {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return "", &WorkspaceError{Op: "create", Path: w.root, Err: err}
	}
	dir, err := os.MkdirTemp(w.root, workspacePrefix+sanitizeHint(hint)+"-*")
	if err != nil {
		return "", &WorkspaceError{Op: "create", Path: w.root, Err: err}
	}
	return dir, nil
}

// Destroy removes a directory created by Create. Failures are only logged.
func (w *Workspace) Destroy(dir string) {
	if dir == "" {
		return
	}
	if err := w.remove(dir); err != nil {
		w.log.Warn("workspace cleanup failed", zap.String("path", dir), zap.Error(err))
	}
}

func (w *Workspace) remove(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return &WorkspaceError{Op: "destroy", Path: dir, Err: err}
	}
	if !w.owns(abs) {
		return &WorkspaceError{Op: "destroy", Path: abs, Err: fmt.Errorf("refusing to delete directory outside %s", w.root)}
	}
	if err := os.RemoveAll(abs); err != nil {
		return &WorkspaceError{Op: "destroy", Path: abs, Err: err}
	}
	return nil
}

func (w *Workspace) owns(abs string) bool {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.Contains(rel, string(filepath.Separator)) {
		return false
	}
	return strings.HasPrefix(rel, workspacePrefix)
}

// Stale lists workspace directories not modified since olderThan ago.
func (w *Workspace) Stale(olderThan time.Duration) ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cutoff := time.Now().Add(-olderThan)
	var out []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workspacePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		out = append(out, filepath.Join(w.root, e.Name()))
	}
	return out, nil
}

// Sweep removes stale workspaces left by crashed runs and returns how many
// were deleted.
func (w *Workspace) Sweep(olderThan time.Duration) int {
	dirs, err := w.Stale(olderThan)
	if err != nil {
		w.log.Warn("workspace sweep failed", zap.String("root", w.root), zap.Error(err))
		return 0
	}
	removed := 0
	for _, dir := range dirs {
		if err := w.remove(dir); err != nil {
			w.log.Warn("workspace sweep skipped", zap.String("path", dir), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

func sanitizeHint(hint string) string {
	hint = unsafeHintChars.ReplaceAllString(strings.TrimSpace(hint), "_")
	hint = strings.Trim(hint, "._-")
	if len(hint) > 40 {
		hint = hint[:40]
	}
	if hint == "" {
		hint = "repo"
	}
	return hint
}
