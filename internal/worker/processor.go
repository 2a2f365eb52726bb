package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/pkg/metrics"
	"github.com/qs3c/repo_scan_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/repository"
)

// ProgressPublisher receives job progress. The Redis publisher serves the
// standalone worker, the websocket hub serves inline mode.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// jobHeartbeat how often a running job refreshes updated_at
const jobHeartbeat = time.Minute

// Processor drives one job through its lifecycle.
type Processor struct {
	jobRepo   *repository.JobRepository
	analyzer  *Analyzer
	publisher ProgressPublisher
	heartbeat time.Duration
	log       *zap.Logger
}

func NewProcessor(
	jobRepo *repository.JobRepository,
	analyzer *Analyzer,
	publisher ProgressPublisher,
	log *zap.Logger,
) *Processor {
	return &Processor{
		jobRepo:   jobRepo,
		analyzer:  analyzer,
		publisher: publisher,
		heartbeat: jobHeartbeat,
		log:       log,
	}
}

// Process marks the job RUNNING, runs the analysis and records the terminal
// state. Jobs that are no longer QUEUED are left untouched.
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) (err error) {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	startedAt := time.Now()
	claimed, err := p.jobRepo.MarkRunning(job.ID, startedAt)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	if !claimed {
		p.log.Info("job no longer queued, skipping", zap.String("job_id", job.ID), zap.String("status", job.Status))
		return nil
	}

	log := p.log.With(zap.String("job_id", job.ID), zap.String("repo_url", job.RepoURL))
	log.Info("job started", zap.String("branch", job.BranchName))
	p.publish(ctx, job, model.JobRunning, "", "")

	stop := p.keepAlive(job.ID)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("internal error: %v", r)
			p.fail(ctx, job, err, startedAt)
		}
	}()

	var lastStep string
	outcome, err := p.analyzer.Analyze(ctx, job.ID, job.RepoURL, job.BranchName, func(step string) {
		lastStep = step
		p.publish(ctx, job, model.JobRunning, step, "")
	})
	if err != nil {
		log.Warn("analysis failed", zap.String("step", lastStep), zap.Error(rawError(err)))
		p.fail(ctx, job, err, startedAt)
		return err
	}

	done, err := p.jobRepo.MarkSucceeded(job.ID, outcome.Project.ID, outcome.Data.CommitHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark job succeeded: %w", err)
	}
	if !done {
		log.Warn("job finished elsewhere, result kept", zap.Int64("project_id", outcome.Project.ID))
		return nil
	}

	elapsed := time.Since(startedAt)
	metrics.JobFinished(model.JobSucceeded, elapsed)
	p.publish(ctx, job, model.JobSucceeded, pubsub.StepDone, "")
	log.Info("job completed",
		zap.Int64("project_id", outcome.Project.ID),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (p *Processor) fail(ctx context.Context, job *model.AnalysisJob, cause error, startedAt time.Time) {
	shown, detail := cause.Error(), errorDetail(cause)
	if errors.Is(cause, context.Canceled) {
		shown, detail = "analysis canceled", "analysis canceled"
	}

	if _, err := p.jobRepo.MarkFailed(job.ID, model.MsgFailed, detail, time.Now()); err != nil {
		p.log.Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.JobFinished(model.JobFailed, time.Since(startedAt))
	p.publish(ctx, job, model.JobFailed, "", shown)
}

// keepAlive refreshes the job's updated_at until the returned func is
// called. Lock waits and long clones write nothing else to the job row and
// would otherwise look like a dead worker to the stale job sweep.
func (p *Processor) keepAlive(jobID string) func() {
	if p.heartbeat <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				if _, err := p.jobRepo.Touch(jobID, now); err != nil {
					p.log.Debug("job heartbeat failed", zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (p *Processor) publish(ctx context.Context, job *model.AnalysisJob, status, step, errMsg string) {
	if p.publisher == nil {
		return
	}
	msg := &pubsub.ProgressMessage{
		JobID:   job.ID,
		RepoURL: job.RepoURL,
		Status:  status,
		Step:    step,
		Error:   errMsg,
	}
	if status == model.JobFailed {
		msg.Message = model.MsgFailed
	}
	// a canceled run still reports its terminal state
	if err := p.publisher.PublishProgress(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Debug("progress publish failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// errorDetail the text stored on the job: the user message of a clone
// failure followed by its cause.
func errorDetail(err error) string {
	var ce *CloneError
	if errors.As(err, &ce) && ce.RawError != nil {
		return ce.UserMessage + ": " + ce.RawError.Error()
	}
	return err.Error()
}

// rawError unwraps a CloneError to its underlying cause for logging.
func rawError(err error) error {
	var ce *CloneError
	if errors.As(err, &ce) && ce.RawError != nil {
		return ce.RawError
	}
	return err
}
