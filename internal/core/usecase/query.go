package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
)

const NoDocumentsAnswer = "No processed documents found. Please upload PDFs first."

type QueryUseCase struct {
	jobs      ports.JobRepository
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	generator ports.AnswerGenerator
	topK      int
}

func NewQueryUseCase(
	jobs ports.JobRepository,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	generator ports.AnswerGenerator,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = 4
	}
	return &QueryUseCase{
		jobs:      jobs,
		embedder:  embedder,
		vectorDB:  vectorDB,
		generator: generator,
		topK:      topK,
	}
}

// Answer only runs once the current job has completed. Nothing is embedded,
// searched or generated otherwise.
func (uc *QueryUseCase) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.NewValidationError("Question must not be empty")
	}

	status, err := uc.currentStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("error processing question: %w", err)
	}
	if status != domain.StatusCompleted {
		return nil, &domain.NotReadyError{Status: status}
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("error processing question: embed query: %w", err)
	}

	chunks, err := uc.vectorDB.Search(ctx, queryVector, uc.topK)
	if domain.IsKind(err, domain.ErrIndexNotFound) {
		return &domain.Answer{Question: question, Text: NoDocumentsAnswer}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error processing question: search index: %w", err)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return nil, fmt.Errorf("error processing question: generate answer: %w", err)
	}

	return &domain.Answer{
		Question: question,
		Text:     strings.TrimSpace(answerText),
		Sources:  chunks,
	}, nil
}

func (uc *QueryUseCase) currentStatus(ctx context.Context) (domain.JobStatus, error) {
	job, err := uc.jobs.Current(ctx)
	if domain.IsKind(err, domain.ErrJobNotFound) {
		return domain.StatusIdle, nil
	}
	if err != nil {
		return "", err
	}
	return job.Status, nil
}
