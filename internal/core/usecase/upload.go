package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
)

type UploadUseCase struct {
	jobs       ports.JobRepository
	storage    ports.ObjectStorage
	dispatcher ports.JobDispatcher
}

func NewUploadUseCase(
	jobs ports.JobRepository,
	storage ports.ObjectStorage,
	dispatcher ports.JobDispatcher,
) *UploadUseCase {
	return &UploadUseCase{
		jobs:       jobs,
		storage:    storage,
		dispatcher: dispatcher,
	}
}

// Upload validates the whole batch before writing anything, stores the files
// and starts background processing.
func (uc *UploadUseCase) Upload(ctx context.Context, files []domain.UploadFile) (*domain.Job, error) {
	if len(files) == 0 {
		return nil, domain.NewValidationError("No files provided")
	}
	for _, file := range files {
		if !domain.IsPDFName(file.Filename) {
			return nil, domain.NewValidationError("File %s is not a PDF", file.Filename)
		}
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file.Filename)
		if err := uc.storage.Save(ctx, name, file.Body); err != nil {
			return nil, fmt.Errorf("save %s to object storage: %w", name, err)
		}
		names = append(names, name)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.StatusProcessing,
		Message:   messageProcessingStarted,
		Files:     names,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	spec := domain.JobSpec{JobID: job.ID, Files: names, CreatedAt: now}
	if err := uc.dispatcher.Dispatch(ctx, spec); err != nil {
		message := fmt.Sprintf("Error processing PDFs: %v", err)
		if failErr := uc.jobs.UpdateStatus(ctx, job.ID, domain.StatusFailed, message); failErr != nil {
			return nil, fmt.Errorf("dispatch job: %w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("dispatch job: %w", err)
	}

	slog.Info("upload_accepted", "job_id", job.ID, "files", names)
	return job, nil
}
