package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/pkg/metrics"
)

// CloneErrorKind coarse cause of a failed clone
type CloneErrorKind string

const (
	CloneNotFound    CloneErrorKind = "not_found"
	CloneUnreachable CloneErrorKind = "unreachable"
	CloneAuth        CloneErrorKind = "auth"
	CloneTimeout     CloneErrorKind = "timeout"
	CloneEmpty       CloneErrorKind = "empty"
	CloneBranch      CloneErrorKind = "branch"
	CloneInvalidURL  CloneErrorKind = "invalid_url"
	CloneFailed      CloneErrorKind = "failed"
)

var cloneMessages = map[CloneErrorKind]string{
	CloneNotFound:    "Repository not found or not accessible, check the URL",
	CloneUnreachable: "Cannot reach the repository host, try again later",
	CloneAuth:        "Access to the repository was denied",
	CloneTimeout:     "Cloning timed out, the repository may be too large or the network unstable",
	CloneEmpty:       "Repository is empty",
	CloneBranch:      "Branch not found in repository",
	CloneInvalidURL:  "Repository URL is invalid",
	CloneFailed:      "Failed to clone repository, check the URL and try again",
}

// CloneError carries a message safe to show to users and the raw cause for
// the logs.
type CloneError struct {
	Kind        CloneErrorKind
	UserMessage string
	RawError    error
}

func (e *CloneError) Error() string {
	return e.UserMessage
}

func (e *CloneError) Unwrap() error {
	return e.RawError
}

func newCloneError(kind CloneErrorKind, err error) *CloneError {
	return &CloneError{Kind: kind, UserMessage: cloneMessages[kind], RawError: err}
}

// classifyCloneError maps go-git and transport failures to a kind.
func classifyCloneError(err error) *CloneError {
	switch {
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return newCloneError(CloneNotFound, err)
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return newCloneError(CloneEmpty, err)
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return newCloneError(CloneAuth, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newCloneError(CloneTimeout, err)
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return newCloneError(CloneBranch, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "couldn't find remote ref"):
		return newCloneError(CloneBranch, err)
	case strings.Contains(lower, "repository not found") ||
		strings.Contains(lower, "not found"):
		return newCloneError(CloneNotFound, err)
	case strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "could not resolve host") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "unable to access"):
		return newCloneError(CloneUnreachable, err)
	case strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "permission denied"):
		return newCloneError(CloneAuth, err)
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out"):
		return newCloneError(CloneTimeout, err)
	case strings.Contains(lower, "repository is empty") ||
		strings.Contains(lower, "empty repository"):
		return newCloneError(CloneEmpty, err)
	default:
		return newCloneError(CloneFailed, err)
	}
}

// isTransient reports whether retrying the clone can help.
func isTransient(ce *CloneError) bool {
	switch ce.Kind {
	case CloneNotFound, CloneAuth, CloneEmpty, CloneBranch, CloneInvalidURL:
		return false
	}
	return !errors.Is(ce.RawError, context.Canceled)
}

// CloneResult a checked-out repository. Path belongs to the caller, who
// must hand it back to Workspace.Destroy.
type CloneResult struct {
	ProjectName string
	Path        string
	Branch      string
	CommitHash  string
}

// Fetcher clones repositories into fresh workspaces.
type Fetcher struct {
	ws         *Workspace
	auth       transport.AuthMethod
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	log        *zap.Logger
}

func NewFetcher(ws *Workspace, cfg config.GitConfig, log *zap.Logger) *Fetcher {
	f := &Fetcher{
		ws:         ws,
		timeout:    time.Duration(cfg.CloneTimeoutSeconds) * time.Second,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
		log:        log,
	}
	if f.timeout <= 0 {
		f.timeout = 300 * time.Second
	}
	if f.maxRetries < 0 {
		f.maxRetries = 0
	}
	// credentials only when both halves are present
	if strings.TrimSpace(cfg.Username) != "" && strings.TrimSpace(cfg.Token) != "" {
		f.auth = &githttp.BasicAuth{Username: cfg.Username, Password: cfg.Token}
	}
	return f
}

// Fetch clones repoURL, checking out branch when given, with exponential
// backoff on transient failures. Each attempt gets its own workspace and a
// failed attempt's workspace is removed before the next one.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, branch string) (*CloneResult, error) {
	if err := ValidateRepoURL(repoURL); err != nil {
		return nil, err
	}

	var lastErr *CloneError
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * f.backoff
			f.log.Info("clone retry",
				zap.String("repo_url", repoURL),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", f.maxRetries),
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, classifyCloneError(ctx.Err())
			case <-time.After(backoff):
			}
		}

		result, err := f.cloneOnce(ctx, repoURL, branch)
		if err == nil {
			return result, nil
		}

		var ce *CloneError
		if !errors.As(err, &ce) {
			// workspace allocation failed; nothing was cloned
			return nil, err
		}
		lastErr = ce
		metrics.CloneFailed(string(ce.Kind))

		f.log.Warn("clone attempt failed",
			zap.String("repo_url", repoURL),
			zap.Int("attempt", attempt+1),
			zap.String("kind", string(ce.Kind)),
			zap.Error(ce.RawError))

		if !isTransient(ce) {
			return nil, ce
		}
	}
	return nil, lastErr
}

func (f *Fetcher) cloneOnce(ctx context.Context, repoURL, branch string) (*CloneResult, error) {
	name := DeriveProjectName(repoURL)
	dir, err := f.ws.Create(name)
	if err != nil {
		return nil, err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	opts := &git.CloneOptions{
		URL:  repoURL,
		Auth: f.auth,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(cloneCtx, dir, false, opts)
	if err != nil {
		f.ws.Destroy(dir)
		return nil, classifyCloneError(err)
	}

	head, err := repo.Head()
	if err != nil {
		f.ws.Destroy(dir)
		return nil, classifyCloneError(err)
	}

	result := &CloneResult{
		ProjectName: name,
		Path:        dir,
		CommitHash:  head.Hash().String(),
	}
	if head.Name().IsBranch() {
		result.Branch = head.Name().Short()
	}

	f.log.Info("repository cloned",
		zap.String("repo_url", repoURL),
		zap.String("path", dir),
		zap.String("branch", result.Branch),
		zap.String("commit", result.CommitHash))
	return result, nil
}

// DeriveProjectName returns the last path segment of a repository URL
// without its .git suffix.
func DeriveProjectName(repoURL string) string {
	s := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	if s == "" {
		return "repository"
	}
	return s
}

var allowedSchemes = map[string]bool{
	"https": true,
	"http":  true,
	"ssh":   true,
	"git":   true,
	"file":  true,
}

// ValidateRepoURL checks that a repository URL is cloneable in principle.
func ValidateRepoURL(repoURL string) error {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return newCloneError(CloneInvalidURL, errors.New("repository url is blank"))
	}

	if strings.HasPrefix(repoURL, "git@") {
		// git@github.com:user/repo.git
		host, path, ok := strings.Cut(strings.TrimPrefix(repoURL, "git@"), ":")
		if !ok || host == "" || strings.Trim(path, "/") == "" {
			return newCloneError(CloneInvalidURL, fmt.Errorf("malformed scp-style url %q", repoURL))
		}
		return nil
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return newCloneError(CloneInvalidURL, err)
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return newCloneError(CloneInvalidURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Scheme == "file" {
		if u.Path == "" {
			return newCloneError(CloneInvalidURL, errors.New("file url without path"))
		}
		return nil
	}
	if u.Host == "" {
		return newCloneError(CloneInvalidURL, errors.New("url has no host"))
	}
	if strings.Trim(u.Path, "/") == "" {
		return newCloneError(CloneInvalidURL, errors.New("url has no repository path"))
	}
	return nil
}
