package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

func newJob(id string) *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:        id,
		Status:    domain.StatusProcessing,
		Message:   "Processing PDFs...",
		Files:     []string{"a.pdf"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestJobRepositoryCurrentWithoutJobs(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	_, err := repo.Current(context.Background())
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobRepositoryCurrentFollowsLatestJob(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, newJob("job-2")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, "job-1", domain.StatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	current, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.ID != "job-2" || current.Status != domain.StatusProcessing {
		t.Fatalf("unexpected current job: %+v", current)
	}

	first, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if first.Status != domain.StatusFailed || first.Message != "boom" {
		t.Fatalf("unexpected first job: %+v", first)
	}
}

func TestJobRepositoryRejectsDuplicateID(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()
	if err := repo.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, newJob("job-1")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestJobRepositoryTerminalStatusIsFinal(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()
	_ = repo.Create(ctx, newJob("job-1"))

	if err := repo.UpdateStatus(ctx, "job-1", domain.StatusCompleted, "done"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, "job-1", domain.StatusFailed, "Processing cancelled."); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	job, _ := repo.GetByID(ctx, "job-1")
	if job.Status != domain.StatusCompleted || job.Message != "done" {
		t.Fatalf("terminal job changed: %+v", job)
	}
}

func TestJobRepositoryReturnsCopies(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()
	_ = repo.Create(ctx, newJob("job-1"))

	job, _ := repo.GetByID(ctx, "job-1")
	job.Status = domain.StatusFailed
	job.Files[0] = "changed.pdf"

	again, _ := repo.GetByID(ctx, "job-1")
	if again.Status != domain.StatusProcessing || again.Files[0] != "a.pdf" {
		t.Fatalf("stored job was mutated through a copy: %+v", again)
	}
}

func TestJobRepositoryApplyUpdate(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()
	_ = repo.Create(ctx, newJob("job-1"))

	err := repo.Apply(ctx, domain.JobUpdate{
		JobID:   "job-1",
		Status:  domain.StatusCompleted,
		Message: "PDF processing completed successfully.",
		Result: &domain.JobResult{
			ChunkCount:  3,
			FailedFiles: []domain.FileFailure{{Filename: "b.pdf", Error: "malformed"}},
		},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	job, _ := repo.GetByID(ctx, "job-1")
	if job.Status != domain.StatusCompleted || job.ChunkCount != 3 || len(job.FailedFiles) != 1 {
		t.Fatalf("unexpected job after apply: %+v", job)
	}
	if err := repo.Apply(ctx, domain.JobUpdate{JobID: "missing", Status: domain.StatusFailed}); !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobRepositoryConcurrentUpdates(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()
	_ = repo.Create(ctx, newJob("job-1"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.UpdateStatus(ctx, "job-1", domain.StatusProcessing, "Creating text chunks...")
			_, _ = repo.Current(ctx)
		}()
	}
	wg.Wait()

	job, _ := repo.Current(ctx)
	if job.Message != "Creating text chunks..." {
		t.Fatalf("unexpected message: %q", job.Message)
	}
}

func TestJobRepositoryFailStale(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()

	stale := newJob("job-stale")
	stale.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	done := newJob("job-done")
	done.Status = domain.StatusCompleted
	done.UpdatedAt = stale.UpdatedAt
	for _, job := range []*domain.Job{stale, done, newJob("job-fresh")} {
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	failed := repo.FailStale(ctx, time.Now().UTC().Add(-time.Minute), "Processing timed out.")
	if len(failed) != 1 || failed[0] != "job-stale" {
		t.Fatalf("expected only job-stale to fail, got %v", failed)
	}

	job, _ := repo.GetByID(ctx, "job-stale")
	if job.Status != domain.StatusFailed || job.Message != "Processing timed out." {
		t.Fatalf("unexpected stale job: %+v", job)
	}
	fresh, _ := repo.Current(ctx)
	if fresh.Status != domain.StatusProcessing {
		t.Fatalf("fresh job must keep processing, got %s", fresh.Status)
	}
	completed, _ := repo.GetByID(ctx, "job-done")
	if completed.Status != domain.StatusCompleted {
		t.Fatalf("completed job must not change, got %s", completed.Status)
	}
}
