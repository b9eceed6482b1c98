// Package worker runs processing jobs on a fixed set of goroutines fed by a
// bounded queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

// Handler processes one job. The context ends on timeout, cancel or pool stop.
type Handler func(ctx context.Context, spec domain.JobSpec) error

type Observer interface {
	StartJob()
	FinishJob(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

type Options struct {
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration
	Observer    Observer
}

type Pool struct {
	handler  Handler
	observer Observer
	size     int
	timeout  time.Duration
	queue    chan domain.JobSpec

	mu        sync.Mutex
	started   bool
	stopped   bool
	queued    map[string]bool
	running   map[string]context.CancelFunc
	stopPool  context.CancelFunc
	waitGroup sync.WaitGroup
}

func NewPool(handler Handler, options Options) *Pool {
	size := options.Concurrency
	if size <= 0 {
		size = 1
	}
	queueSize := options.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	timeout := options.JobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Pool{
		handler:  handler,
		observer: options.Observer,
		size:     size,
		timeout:  timeout,
		queue:    make(chan domain.JobSpec, queueSize),
		queued:   make(map[string]bool),
		running:  make(map[string]context.CancelFunc),
	}
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	poolCtx, cancel := context.WithCancel(ctx)
	p.stopPool = cancel
	for i := 0; i < p.size; i++ {
		p.waitGroup.Add(1)
		go p.loop(poolCtx)
	}
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// that never started are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.stopPool
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.waitGroup.Wait()
}

func (p *Pool) Dispatch(_ context.Context, spec domain.JobSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return domain.WrapError(domain.ErrTemporary, "dispatch job", fmt.Errorf("worker pool stopped"))
	}
	if _, dup := p.queued[spec.JobID]; dup {
		return domain.WrapError(domain.ErrInvalidInput, "dispatch job", fmt.Errorf("job %s already queued", spec.JobID))
	}

	select {
	case p.queue <- spec:
		p.queued[spec.JobID] = false
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "dispatch job", fmt.Errorf("worker queue is full"))
	}
}

// Cancel stops a running job or marks a queued one so that it ends as soon
// as a worker picks it up.
func (p *Pool) Cancel(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cancel, ok := p.running[jobID]; ok {
		cancel()
		return nil
	}
	if _, ok := p.queued[jobID]; ok {
		p.queued[jobID] = true
		return nil
	}
	return domain.WrapError(domain.ErrJobNotFound, "cancel job", fmt.Errorf("id=%s", jobID))
}

func (p *Pool) loop(ctx context.Context) {
	defer p.waitGroup.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case spec := <-p.queue:
			p.run(ctx, spec)
		}
	}
}

func (p *Pool) run(ctx context.Context, spec domain.JobSpec) {
	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	cancelled := p.queued[spec.JobID]
	delete(p.queued, spec.JobID)
	p.running[spec.JobID] = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.running, spec.JobID)
		p.mu.Unlock()
	}()

	// The handler still runs so that the job is reported as cancelled.
	if cancelled {
		cancel()
	}

	if p.observer != nil && !spec.CreatedAt.IsZero() {
		p.observer.ObserveQueueLag(time.Since(spec.CreatedAt))
	}
	if p.observer != nil {
		p.observer.StartJob()
	}

	start := time.Now()
	err := p.safeHandle(jobCtx, spec)
	duration := time.Since(start)

	if p.observer != nil {
		p.observer.FinishJob(duration, err)
	}
	if err != nil {
		slog.Error("job_failed", "job_id", spec.JobID, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	slog.Info("job_finished", "job_id", spec.JobID, "duration_ms", duration.Milliseconds())
}

func (p *Pool) safeHandle(ctx context.Context, spec domain.JobSpec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return p.handler(ctx, spec)
}
