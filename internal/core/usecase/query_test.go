package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

func completedJobs(t *testing.T) *jobRepoFake {
	t.Helper()
	jobs := newJobRepoFake()
	if err := jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.StatusCompleted}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return jobs
}

func TestQueryUseCaseAnswer(t *testing.T) {
	embedder := &embedderFake{}
	vector := &vectorFake{searchChunk: []domain.RetrievedChunk{{Text: "chunk", Score: 0.9}}}
	generator := &generatorFake{answer: "  Paris.\n"}
	uc := NewQueryUseCase(completedJobs(t), embedder, vector, generator, 0)

	answer, err := uc.Answer(context.Background(), " What is the capital? ")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "Paris." || answer.Question != "What is the capital?" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if vector.limit != 4 {
		t.Fatalf("expected default top-k=4, got %d", vector.limit)
	}
	if embedder.query != "What is the capital?" || generator.question != "What is the capital?" {
		t.Fatalf("question not passed through: embed=%q generate=%q", embedder.query, generator.question)
	}
}

func TestQueryUseCaseNotReady(t *testing.T) {
	cases := map[string]*jobRepoFake{
		"idle":       newJobRepoFake(),
		"processing": newJobRepoFake(),
		"failed":     newJobRepoFake(),
	}
	_ = cases["processing"].Create(context.Background(), &domain.Job{ID: "p", Status: domain.StatusProcessing})
	_ = cases["failed"].Create(context.Background(), &domain.Job{ID: "f", Status: domain.StatusFailed})

	for status, jobs := range cases {
		t.Run(status, func(t *testing.T) {
			embedder := &embedderFake{}
			vector := &vectorFake{}
			generator := &generatorFake{}
			uc := NewQueryUseCase(jobs, embedder, vector, generator, 4)

			_, err := uc.Answer(context.Background(), "q")
			var notReady *domain.NotReadyError
			if !errors.As(err, &notReady) || string(notReady.Status) != status {
				t.Fatalf("expected not ready error for %s, got %v", status, err)
			}
			if err.Error() != "PDF processing not completed. Current status: "+status {
				t.Fatalf("unexpected message: %q", err.Error())
			}
			if embedder.query != "" || vector.searched || generator.called {
				t.Fatalf("no work should happen before processing completed")
			}
		})
	}
}

func TestQueryUseCaseMissingIndex(t *testing.T) {
	generator := &generatorFake{}
	vector := &vectorFake{searchErr: domain.WrapError(domain.ErrIndexNotFound, "load index", errors.New("no such file"))}
	uc := NewQueryUseCase(completedJobs(t), &embedderFake{}, vector, generator, 4)

	answer, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != NoDocumentsAnswer || generator.called {
		t.Fatalf("expected no documents answer, got %+v", answer)
	}
}

func TestQueryUseCaseWrapsFailures(t *testing.T) {
	uc := NewQueryUseCase(completedJobs(t), &embedderFake{}, &vectorFake{}, &generatorFake{err: errors.New("quota exceeded")}, 4)

	_, err := uc.Answer(context.Background(), "q")
	if err == nil || !strings.HasPrefix(err.Error(), "error processing question: ") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestQueryUseCaseEmbedError(t *testing.T) {
	uc := NewQueryUseCase(completedJobs(t), &embedderFake{err: errors.New("embed fail")}, &vectorFake{}, &generatorFake{}, 4)
	if _, err := uc.Answer(context.Background(), "q"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestQueryUseCaseRejectsEmptyQuestion(t *testing.T) {
	uc := NewQueryUseCase(completedJobs(t), &embedderFake{}, &vectorFake{}, &generatorFake{}, 4)
	_, err := uc.Answer(context.Background(), "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
