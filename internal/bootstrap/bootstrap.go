package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/config"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/usecase"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/worker"
	"github.com/kirillkom/pdf-qa-assistant/internal/observability/metrics"
)

const (
	QueueDriverInProc = "inproc"
	QueueDriverNATS   = "nats"

	staleSweepInterval = 30 * time.Second
	// staleGrace covers status delivery delays on top of the worker timeout.
	staleGrace      = time.Minute
	messageTimedOut = "Processing timed out."
)

// App is the API process: HTTP use cases plus the background job runner for
// the configured queue driver.
type App struct {
	Config config.Config

	Jobs     *memory.JobRepository
	UploadUC *usecase.UploadUseCase
	QueryUC  *usecase.QueryUseCase
	StatusUC *usecase.JobStatusUseCase

	HTTPMetrics *metrics.HTTPServerMetrics
	Executor    *resilience.Executor

	pool    *worker.Pool
	queue   *nats.Queue
	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg))
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	pipelineMetrics := metrics.NewPipelineMetrics("api", httpMetrics.Registry())

	deps, err := newPipelineDeps(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	jobs := memory.NewJobRepository(time.Duration(cfg.JobRetentionHours) * time.Hour)

	app := &App{
		Config:      cfg,
		Jobs:        jobs,
		HTTPMetrics: httpMetrics,
		Executor:    executor,
	}

	var dispatcher ports.JobDispatcher
	switch cfg.QueueDriver {
	case QueueDriverNATS:
		queue, err := newQueue(cfg, executor)
		if err != nil {
			deps.close()
			return nil, err
		}
		app.queue = queue
		dispatcher = nats.NewDispatcher(queue)
	case QueueDriverInProc, "":
		processUC := deps.processUseCase(cfg, jobs, pipelineMetrics)
		app.pool = newPool(cfg, processUC, pipelineMetrics)
		dispatcher = app.pool
	default:
		deps.close()
		return nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}

	app.UploadUC = usecase.NewUploadUseCase(jobs, deps.storage, dispatcher)
	app.StatusUC = usecase.NewJobStatusUseCase(jobs, dispatcher)
	app.QueryUC = usecase.NewQueryUseCase(jobs, deps.embedder, deps.vectorDB, deps.generator, cfg.RAGTopK)
	app.closeFn = func() {
		if app.queue != nil {
			app.queue.Close()
		}
		deps.close()
	}
	return app, nil
}

// Start launches background processing: the in-process pool, or the
// subscription that applies status updates published by remote workers.
func (a *App) Start(ctx context.Context) {
	if a.pool != nil {
		a.pool.Start(ctx)
		return
	}
	if a.queue != nil {
		go func() {
			if err := a.queue.SubscribeStatus(ctx, a.Jobs.Apply); err != nil {
				slog.Error("status_subscription_failed", "error", err)
			}
		}()
		// A worker that dies mid-job never reports again.
		go sweepStaleJobs(ctx, a.Jobs, pipelineTimeout(a.Config)+staleGrace, staleSweepInterval)
	}
}

type staleJobFailer interface {
	FailStale(ctx context.Context, cutoff time.Time, message string) []string
}

// sweepStaleJobs fails processing jobs without a status update for maxIdle.
func sweepStaleJobs(ctx context.Context, jobs staleJobFailer, maxIdle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range jobs.FailStale(ctx, time.Now().UTC().Add(-maxIdle), messageTimedOut) {
				slog.Warn("job_timed_out", "job_id", id, "max_idle", maxIdle.String())
			}
		}
	}
}

func pipelineTimeout(cfg config.Config) time.Duration {
	if cfg.PipelineTimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(cfg.PipelineTimeoutSeconds) * time.Second
}

func (a *App) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newPool(cfg config.Config, processUC *usecase.ProcessBatchUseCase, observer worker.Observer) *worker.Pool {
	return worker.NewPool(processUC.Process, worker.Options{
		Concurrency: poolConcurrency(cfg),
		QueueSize:   cfg.WorkerQueueSize,
		JobTimeout:  pipelineTimeout(cfg),
		Observer:    observer,
	})
}

// poolConcurrency keeps one job running per process. Every job replaces the
// whole index, so a slower older job finishing last would overwrite the index
// of the current one.
func poolConcurrency(cfg config.Config) int {
	if cfg.WorkerConcurrency > 1 {
		slog.Warn("worker_concurrency_limited", "configured", cfg.WorkerConcurrency, "used", 1)
	}
	return 1
}

func newQueue(cfg config.Config, executor *resilience.Executor) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.ResilienceRetryInitialMS) * time.Millisecond
	out.RetryMaxBackoff = time.Duration(cfg.ResilienceRetryMaxMS) * time.Millisecond
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenSeconds) * time.Second
	return out
}
