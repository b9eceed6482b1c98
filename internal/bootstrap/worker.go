package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pdf-qa-assistant/internal/config"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/worker"
	"github.com/kirillkom/pdf-qa-assistant/internal/observability/metrics"
)

// Worker runs processing jobs received over NATS and publishes their status.
type Worker struct {
	Metrics *metrics.PipelineMetrics

	queue   *nats.Queue
	pool    *worker.Pool
	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	if cfg.QueueDriver != QueueDriverNATS {
		return nil, fmt.Errorf("worker requires QUEUE_DRIVER=%s, got %q", QueueDriverNATS, cfg.QueueDriver)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	pipelineMetrics := metrics.NewPipelineMetrics("worker", nil)

	deps, err := newPipelineDeps(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}
	queue, err := newQueue(cfg, executor)
	if err != nil {
		deps.close()
		return nil, err
	}

	processUC := deps.processUseCase(cfg, nats.NewStatusReporter(queue), pipelineMetrics)

	return &Worker{
		Metrics: pipelineMetrics,
		queue:   queue,
		pool:    newPool(cfg, processUC, pipelineMetrics),
		closeFn: func() {
			queue.Close()
			deps.close()
		},
	}, nil
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.pool.Start(ctx)
	defer w.pool.Stop()

	go func() {
		// Every worker receives the broadcast; only the owner acknowledges it.
		if err := w.queue.SubscribeCancels(ctx, w.pool.Cancel); err != nil {
			slog.Error("cancel_subscription_failed", "error", err)
		}
	}()

	return w.queue.SubscribeJobs(ctx, w.accept)
}

// accept queues the job locally. A rejection goes back to the API in the ack,
// which marks the job failed.
func (w *Worker) accept(ctx context.Context, spec domain.JobSpec) error {
	if err := w.pool.Dispatch(ctx, spec); err != nil {
		slog.Warn("job_rejected", "job_id", spec.JobID, "error", err)
		return err
	}
	return nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
