package nats

import (
	"context"
	"fmt"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

type publisher interface {
	PublishJob(ctx context.Context, spec domain.JobSpec) error
	PublishStatus(ctx context.Context, update domain.JobUpdate) error
	PublishCancel(ctx context.Context, jobID string) error
}

// Dispatcher hands jobs to remote workers.
type Dispatcher struct {
	queue publisher
}

func NewDispatcher(queue publisher) *Dispatcher {
	return &Dispatcher{queue: queue}
}

func (d *Dispatcher) Dispatch(ctx context.Context, spec domain.JobSpec) error {
	if err := d.queue.PublishJob(ctx, spec); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Cancel asks the owning worker to stop the job. ErrJobNotFound means no
// worker holds it.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) error {
	if err := d.queue.PublishCancel(ctx, jobID); err != nil {
		return fmt.Errorf("publish cancel: %w", err)
	}
	return nil
}

// StatusReporter publishes pipeline progress from a worker process.
type StatusReporter struct {
	queue publisher
}

func NewStatusReporter(queue publisher) *StatusReporter {
	return &StatusReporter{queue: queue}
}

func (r *StatusReporter) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, message string) error {
	return r.queue.PublishStatus(ctx, domain.JobUpdate{JobID: id, Status: status, Message: message})
}

func (r *StatusReporter) SaveResult(ctx context.Context, id string, result domain.JobResult) error {
	return r.queue.PublishStatus(ctx, domain.JobUpdate{JobID: id, Result: &result})
}
