package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

type statusCall struct {
	status  domain.JobStatus
	message string
}

type jobRepoFake struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	currentID string
	calls     []statusCall
	results   []domain.JobResult
	createErr error
	statusErr error
}

func newJobRepoFake() *jobRepoFake {
	return &jobRepoFake{jobs: make(map[string]*domain.Job)}
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyJob := *job
	f.jobs[job.ID] = &copyJob
	f.currentID = job.ID
	return nil
}

func (f *jobRepoFake) GetByID(_ context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
	}
	copyJob := *job
	return &copyJob, nil
}

func (f *jobRepoFake) Current(ctx context.Context) (*domain.Job, error) {
	f.mu.Lock()
	id := f.currentID
	f.mu.Unlock()
	if id == "" {
		return nil, domain.WrapError(domain.ErrJobNotFound, "current job", fmt.Errorf("no jobs yet"))
	}
	return f.GetByID(ctx, id)
}

func (f *jobRepoFake) UpdateStatus(_ context.Context, id string, status domain.JobStatus, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statusCall{status: status, message: message})
	if f.statusErr != nil {
		return f.statusErr
	}
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.Message = message
	}
	return nil
}

func (f *jobRepoFake) SaveResult(_ context.Context, id string, result domain.JobResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	if job, ok := f.jobs[id]; ok {
		job.ChunkCount = result.ChunkCount
		job.FailedFiles = result.FailedFiles
	}
	return nil
}

func (f *jobRepoFake) lastCall() statusCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return statusCall{}
	}
	return f.calls[len(f.calls)-1]
}

type storageFake struct {
	saved map[string]string
	order []string
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = string(raw)
	f.order = append(f.order, key)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.saved[key])), nil
}

type dispatcherFake struct {
	specs     []domain.JobSpec
	cancelled []string
	err       error
	cancelErr error
}

func (f *dispatcherFake) Dispatch(_ context.Context, spec domain.JobSpec) error {
	if f.err != nil {
		return f.err
	}
	f.specs = append(f.specs, spec)
	return nil
}

func (f *dispatcherFake) Cancel(_ context.Context, jobID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type extractorFake struct {
	extraction domain.Extraction
	err        error
	keys       []string
}

func (f *extractorFake) Extract(_ context.Context, keys []string) (domain.Extraction, error) {
	f.keys = keys
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return f.extraction, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

// embedderFake returns one single-value vector per text, numbered in call order.
type embedderFake struct {
	batches [][]string
	short   bool
	panics  bool
	err     error
	query   string
	next    float32
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.panics {
		panic("index out of range")
	}
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		f.next++
		out = append(out, []float32{f.next})
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type vectorFake struct {
	replaced    []domain.IndexedChunk
	replaceErr  error
	searchErr   error
	limit       int
	searched    bool
	searchChunk []domain.RetrievedChunk
}

func (f *vectorFake) Replace(_ context.Context, entries []domain.IndexedChunk) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = entries
	return nil
}

func (f *vectorFake) Search(_ context.Context, _ []float32, limit int) ([]domain.RetrievedChunk, error) {
	f.searched = true
	f.limit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchChunk, nil
}

type generatorFake struct {
	answer   string
	err      error
	called   bool
	question string
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question string, _ []domain.RetrievedChunk) (string, error) {
	f.called = true
	f.question = question
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
