package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
)

// ErrPoolStopped Dispatch was called after Stop.
var ErrPoolStopped = errors.New("worker pool is stopped")

// JobHandler processes one dispatched job.
type JobHandler interface {
	Process(ctx context.Context, msg *queue.JobMessage) error
}

// Pool runs jobs on a fixed number of goroutines with a bounded backlog.
type Pool struct {
	handler JobHandler
	jobs    chan *queue.JobMessage
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	log     *zap.Logger
}

func NewPool(handler JobHandler, workers, buffer int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler: handler,
		jobs:    make(chan *queue.JobMessage, buffer),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workers), zap.Int("buffer", cap(p.jobs)))
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for msg := range p.jobs {
		if err := p.handler.Process(p.ctx, msg); err != nil {
			p.log.Warn("job failed", zap.Int("worker", id), zap.String("job_id", msg.JobID), zap.Error(err))
		}
	}
}

// Dispatch hands a job to the pool without blocking. It returns
// queue.ErrQueueFull when every worker is busy and the backlog is full.
func (p *Pool) Dispatch(_ context.Context, msg *queue.JobMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- msg:
		return nil
	default:
		return queue.ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued ones to finish. Running jobs
// are canceled once timeout elapses; timeout <= 0 waits indefinitely.
func (p *Pool) Stop(timeout time.Duration) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if timeout > 0 {
		select {
		case <-done:
		case <-time.After(timeout):
			p.log.Warn("worker pool drain timed out, canceling running jobs")
			p.cancel()
			<-done
		}
	} else {
		<-done
	}
	p.cancel()
	p.log.Info("worker pool stopped")
}

// Consume pops jobs from a Redis queue on workers goroutines until ctx is
// done.
func Consume(ctx context.Context, q *queue.Queue, handler JobHandler, workers int, log *zap.Logger) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					log.Info("consumer shutting down", zap.Int("worker", id))
					return
				}

				msg, err := q.Pop(ctx, 5*time.Second)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn("failed to pop job", zap.Int("worker", id), zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
					continue
				}
				if msg == nil {
					continue
				}

				log.Info("processing job", zap.Int("worker", id), zap.String("job_id", msg.JobID))
				if err := handler.Process(ctx, msg); err != nil {
					log.Warn("job failed", zap.Int("worker", id), zap.String("job_id", msg.JobID), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
}
