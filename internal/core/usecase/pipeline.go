package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
)

const (
	messageProcessingStarted = "Processing PDFs..."
	messageExtracting        = "Extracting text from PDFs..."
	messageChunking          = "Creating text chunks..."
	messageCompleted         = "PDF processing completed successfully."
	messageNoText            = "Could not extract text from PDFs."
	messageCancelled         = "Processing cancelled."
	messageTimedOut          = "Processing timed out."
)

var errNoText = errors.New("no text extracted")

type vectorStoreError struct {
	err error
}

func (e *vectorStoreError) Error() string { return "create vector store: " + e.err.Error() }

func (e *vectorStoreError) Unwrap() error { return e.err }

// PipelineObserver receives pipeline progress for metrics.
type PipelineObserver interface {
	ObserveEmbeddingBatch()
	ObserveIndexedChunks(count int)
}

type PipelineOptions struct {
	EmbedBatchSize  int
	EmbedBatchPause time.Duration
	Observer        PipelineObserver
}

type ProcessBatchUseCase struct {
	jobs      ports.JobReporter
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore

	batchSize  int
	batchPause time.Duration
	observer   PipelineObserver
}

func NewProcessBatchUseCase(
	jobs ports.JobReporter,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	options PipelineOptions,
) *ProcessBatchUseCase {
	batchSize := options.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	batchPause := options.EmbedBatchPause
	if batchPause < 0 {
		batchPause = 0
	}
	return &ProcessBatchUseCase{
		jobs:       jobs,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		vectorDB:   vectorDB,
		batchSize:  batchSize,
		batchPause: batchPause,
		observer:   options.Observer,
	}
}

// Process runs extraction, chunking, embedding and indexing for one job. The
// outcome is always recorded on the job; the returned error is for the caller's
// logs and metrics.
func (uc *ProcessBatchUseCase) Process(ctx context.Context, spec domain.JobSpec) error {
	err := uc.safeRun(ctx, spec)
	if err == nil {
		return nil
	}

	message := failureMessage(ctx, err)
	slog.Warn("pipeline_failed", "job_id", spec.JobID, "message", message, "error", err)

	// The job context may already be done; the failure must still be recorded.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if failErr := uc.jobs.UpdateStatus(reportCtx, spec.JobID, domain.StatusFailed, message); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", err, failErr)
	}
	return err
}

// safeRun turns a panic in any stage into an error so the job still ends failed.
func (uc *ProcessBatchUseCase) safeRun(ctx context.Context, spec domain.JobSpec) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pipeline panic: %v", recovered)
		}
	}()
	return uc.run(ctx, spec)
}

func (uc *ProcessBatchUseCase) run(ctx context.Context, spec domain.JobSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := uc.report(ctx, spec.JobID, messageExtracting); err != nil {
		return err
	}
	extraction, err := uc.extractor.Extract(ctx, spec.Files)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(extraction.Text) == "" {
		return errNoText
	}

	if err := uc.report(ctx, spec.JobID, messageChunking); err != nil {
		return err
	}
	chunks := uc.chunker.Split(extraction.Text)
	if len(chunks) == 0 {
		return errNoText
	}

	if err := uc.report(ctx, spec.JobID, fmt.Sprintf("Creating vector embeddings for %d chunks...", len(chunks))); err != nil {
		return err
	}
	entries, err := uc.embedAll(ctx, chunks)
	if err != nil {
		return &vectorStoreError{err: err}
	}
	if err := uc.vectorDB.Replace(ctx, entries); err != nil {
		return &vectorStoreError{err: err}
	}
	if uc.observer != nil {
		uc.observer.ObserveIndexedChunks(len(entries))
	}

	result := domain.JobResult{ChunkCount: len(chunks), FailedFiles: extraction.Failures}
	if err := uc.jobs.SaveResult(ctx, spec.JobID, result); err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	if err := uc.jobs.UpdateStatus(ctx, spec.JobID, domain.StatusCompleted, completionMessage(extraction.Failures)); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}

	slog.Info("pipeline_completed", "job_id", spec.JobID, "chunks", len(chunks), "failed_files", len(extraction.Failures))
	return nil
}

// embedAll embeds chunks one batch at a time, pausing between batches to stay
// under provider rate limits.
func (uc *ProcessBatchUseCase) embedAll(ctx context.Context, chunks []string) ([]domain.IndexedChunk, error) {
	entries := make([]domain.IndexedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.batchSize {
		if start > 0 && uc.batchPause > 0 {
			timer := time.NewTimer(uc.batchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+uc.batchSize, len(chunks))
		batch := chunks[start:end]
		vectors, err := uc.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
			)
		}
		for i, text := range batch {
			entries = append(entries, domain.IndexedChunk{Text: text, Vector: vectors[i]})
		}
		if uc.observer != nil {
			uc.observer.ObserveEmbeddingBatch()
		}
	}
	return entries, nil
}

func (uc *ProcessBatchUseCase) report(ctx context.Context, jobID, message string) error {
	if err := uc.jobs.UpdateStatus(ctx, jobID, domain.StatusProcessing, message); err != nil {
		return fmt.Errorf("set status message: %w", err)
	}
	return nil
}

func failureMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return messageTimedOut
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return messageCancelled
	case errors.Is(err, errNoText):
		return messageNoText
	}

	var storeErr *vectorStoreError
	if errors.As(err, &storeErr) {
		return "Failed to create vector store: " + storeErr.err.Error()
	}
	return "Error processing PDFs: " + err.Error()
}

func completionMessage(failures []domain.FileFailure) string {
	if len(failures) == 0 {
		return messageCompleted
	}
	names := make([]string, 0, len(failures))
	for _, failure := range failures {
		names = append(names, failure.Filename)
	}
	return fmt.Sprintf("%s Skipped unreadable files: %s.", messageCompleted, strings.Join(names, ", "))
}
