package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/pkg/metrics"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/worker"
)

// Dispatcher hands a queued job to whatever executes it: the in-process
// worker pool or the Redis queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *queue.JobMessage) error
}

var branchName = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

type JobService struct {
	jobRepo    *repository.JobRepository
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewJobService(jobRepo *repository.JobRepository, dispatcher Dispatcher, log *zap.Logger) *JobService {
	return &JobService{
		jobRepo:    jobRepo,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Enqueue records a QUEUED job and dispatches it. A dispatch failure fails
// the job right away; the job is still returned so the caller can report
// its id and status.
func (s *JobService) Enqueue(ctx context.Context, req *dto.SubmitAnalysisRequest) (*model.AnalysisJob, error) {
	repoURL := strings.TrimSpace(req.RepoURL)
	if err := worker.ValidateRepoURL(repoURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRepoURL, errors.Unwrap(err))
	}
	branch := strings.TrimSpace(req.Branch)
	if branch != "" && (!branchName.MatchString(branch) || strings.Contains(branch, "..") || strings.HasPrefix(branch, "-")) {
		return nil, ErrInvalidBranch
	}

	job := &model.AnalysisJob{
		RepoURL:       repoURL,
		BranchName:    branch,
		Status:        model.JobQueued,
		StatusMessage: model.MsgQueued,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	err := s.dispatcher.Dispatch(ctx, &queue.JobMessage{
		JobID:   job.ID,
		RepoURL: job.RepoURL,
		Branch:  job.BranchName,
	})
	if err == nil {
		s.log.Info("job queued", zap.String("job_id", job.ID), zap.String("repo_url", repoURL))
		return job, nil
	}

	statusMessage := model.MsgFailed
	if errors.Is(err, queue.ErrQueueFull) {
		statusMessage = model.MsgQueueFull
	}
	metrics.JobRejected()
	s.log.Warn("job dispatch failed", zap.String("job_id", job.ID), zap.Error(err))

	if _, markErr := s.jobRepo.MarkFailed(job.ID, statusMessage, err.Error(), time.Now()); markErr != nil {
		return nil, fmt.Errorf("failed to record dispatch failure: %w", markErr)
	}
	return s.GetJob(job.ID)
}

func (s *JobService) GetJob(id string) (*model.AnalysisJob, error) {
	job, err := s.jobRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// Stats counts jobs per status.
func (s *JobService) Stats() (map[string]int64, error) {
	return s.jobRepo.CountByStatus()
}

// JobStatus maps a job onto its API shape.
func JobStatus(job *model.AnalysisJob) *dto.JobStatusResponse {
	return &dto.JobStatusResponse{
		JobID:          job.ID,
		RepoURL:        job.RepoURL,
		BranchName:     job.BranchName,
		Status:         job.Status,
		StatusMessage:  job.StatusMessage,
		ErrorMessage:   job.ErrorMessage,
		ProjectID:      job.ProjectID,
		CommitHash:     job.CommitHash,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		ElapsedSeconds: job.ElapsedSeconds,
	}
}
