package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
)

// JobStatusUseCase serves the processing status views and job cancellation.
type JobStatusUseCase struct {
	jobs       ports.JobRepository
	dispatcher ports.JobDispatcher
}

func NewJobStatusUseCase(jobs ports.JobRepository, dispatcher ports.JobDispatcher) *JobStatusUseCase {
	return &JobStatusUseCase{jobs: jobs, dispatcher: dispatcher}
}

// Current returns the latest job, or the idle view before any upload.
func (uc *JobStatusUseCase) Current(ctx context.Context) (domain.Job, error) {
	job, err := uc.jobs.Current(ctx)
	if domain.IsKind(err, domain.ErrJobNotFound) {
		return domain.IdleJob(), nil
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("load current job: %w", err)
	}
	return *job, nil
}

func (uc *JobStatusUseCase) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	return uc.jobs.GetByID(ctx, id)
}

func (uc *JobStatusUseCase) Cancel(ctx context.Context, jobID string) error {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return domain.WrapError(domain.ErrJobNotFound, "cancel job", fmt.Errorf("job %s already %s", jobID, job.Status))
	}

	err = uc.dispatcher.Cancel(ctx, jobID)
	if domain.IsKind(err, domain.ErrJobNotFound) {
		// Nothing runs this job any more; close the record so it is not stuck.
		return uc.jobs.UpdateStatus(ctx, jobID, domain.StatusFailed, messageCancelled)
	}
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}
