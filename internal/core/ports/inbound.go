package ports

import (
	"context"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

// DocumentUploader is the inbound contract for the upload operation.
type DocumentUploader interface {
	Upload(ctx context.Context, files []domain.UploadFile) (*domain.Job, error)
}

// QuestionAnswerer is the inbound contract for the ask-question operation.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// JobReader is the inbound read model for processing status.
type JobReader interface {
	Current(ctx context.Context) (domain.Job, error)
	GetByID(ctx context.Context, id string) (*domain.Job, error)
}

// JobCanceller stops a queued or running job.
type JobCanceller interface {
	Cancel(ctx context.Context, jobID string) error
}

// BatchProcessor runs the extraction, chunking and indexing pipeline for one job.
type BatchProcessor interface {
	Process(ctx context.Context, spec domain.JobSpec) error
}
