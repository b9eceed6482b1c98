// Package memory keeps job records in process memory. Records expire after
// the retention period; the current job is always kept.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

type JobRepository struct {
	jobs *gocache.Cache

	mu      sync.Mutex
	current *domain.Job
}

func NewJobRepository(retention time.Duration) *JobRepository {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &JobRepository{
		jobs: gocache.New(retention, retention/2),
	}
}

func (r *JobRepository) Create(_ context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create job", fmt.Errorf("job id is required"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneJob(job)
	if err := r.jobs.Add(job.ID, stored, gocache.DefaultExpiration); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "create job", err)
	}
	r.current = stored
	return nil
}

func (r *JobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

func (r *JobRepository) Current(_ context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return nil, domain.WrapError(domain.ErrJobNotFound, "current job", fmt.Errorf("no jobs yet"))
	}
	return cloneJob(r.current), nil
}

func (r *JobRepository) UpdateStatus(_ context.Context, id string, status domain.JobStatus, message string) error {
	return r.update(id, func(job *domain.Job) {
		if status != "" {
			job.Status = status
		}
		job.Message = message
	})
}

func (r *JobRepository) SaveResult(_ context.Context, id string, result domain.JobResult) error {
	return r.update(id, func(job *domain.Job) {
		job.ChunkCount = result.ChunkCount
		job.FailedFiles = append([]domain.FileFailure(nil), result.FailedFiles...)
	})
}

// Apply merges an update reported by a worker process.
func (r *JobRepository) Apply(ctx context.Context, update domain.JobUpdate) error {
	if update.Result != nil {
		if err := r.SaveResult(ctx, update.JobID, *update.Result); err != nil {
			return err
		}
	}
	if update.Status == "" && update.Message == "" {
		return nil
	}
	return r.UpdateStatus(ctx, update.JobID, update.Status, update.Message)
}

// FailStale marks processing jobs with no update since cutoff as failed and
// returns their ids.
func (r *JobRepository) FailStale(_ context.Context, cutoff time.Time, message string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make(map[string]*domain.Job)
	for id, item := range r.jobs.Items() {
		candidates[id] = item.Object.(*domain.Job)
	}
	if r.current != nil {
		candidates[r.current.ID] = r.current
	}

	var failed []string
	now := time.Now().UTC()
	for id, job := range candidates {
		if job.Status != domain.StatusProcessing {
			continue
		}
		lastSeen := job.UpdatedAt
		if lastSeen.IsZero() {
			lastSeen = job.CreatedAt
		}
		if !lastSeen.Before(cutoff) {
			continue
		}
		job.Status = domain.StatusFailed
		job.Message = message
		job.UpdatedAt = now
		failed = append(failed, id)
	}
	return failed
}

func (r *JobRepository) update(id string, mutate func(*domain.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	// Terminal jobs are only replaced by a new upload.
	if job.Status.IsTerminal() {
		return nil
	}
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	r.jobs.SetDefault(id, job)
	return nil
}

func (r *JobRepository) lookup(id string) (*domain.Job, error) {
	if r.current != nil && r.current.ID == id {
		return r.current, nil
	}
	v, ok := r.jobs.Get(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
	}
	return v.(*domain.Job), nil
}

func cloneJob(job *domain.Job) *domain.Job {
	out := *job
	out.Files = append([]string(nil), job.Files...)
	out.FailedFiles = append([]domain.FileFailure(nil), job.FailedFiles...)
	return &out
}
