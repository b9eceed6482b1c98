package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

// JobReporter receives pipeline progress for a job.
type JobReporter interface {
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, message string) error
	SaveResult(ctx context.Context, id string, result domain.JobResult) error
}

// JobRepository persists and reads job state.
type JobRepository interface {
	JobReporter
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	// Current returns the most recently created job, or ErrJobNotFound.
	Current(ctx context.Context) (*domain.Job, error)
}

// JobDispatcher hands jobs to background workers.
type JobDispatcher interface {
	Dispatch(ctx context.Context, spec domain.JobSpec) error
	Cancel(ctx context.Context, jobID string) error
}

// ObjectStorage stores uploaded documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts the combined plain text of stored documents.
type TextExtractor interface {
	Extract(ctx context.Context, keys []string) (domain.Extraction, error)
}

// Chunker splits text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists the similarity index and searches it.
type VectorStore interface {
	// Replace overwrites the persisted index with entries.
	Replace(ctx context.Context, entries []domain.IndexedChunk) error
	// Search returns ErrIndexNotFound when no index was persisted yet.
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
}
