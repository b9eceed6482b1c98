package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/config"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/usecase"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/vector/localindex"
)

type pipelineDeps struct {
	storage   *localfs.Storage
	extractor *pdftext.Extractor
	chunker   *chunking.Splitter
	vectorDB  *localindex.Store
	embedder  ports.Embedder
	generator ports.AnswerGenerator
	close     func()
}

func newPipelineDeps(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*pipelineDeps, error) {
	storage, err := localfs.New(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	vectorDB := localindex.New(cfg.IndexDir)

	deps := &pipelineDeps{
		storage:   storage,
		extractor: pdftext.NewExtractor(storage),
		chunker:   chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		vectorDB:  vectorDB,
		close:     func() {},
	}

	switch cfg.LLMProvider {
	case "ollama":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			Temperature:        cfg.LLMTemperature,
			ResilienceExecutor: executor,
		})
		deps.embedder = ollama.NewEmbedder(client)
		deps.generator = ollama.NewGenerator(client)
	case "gemini", "":
		client, err := gemini.New(ctx, gemini.Options{
			APIKey:             cfg.GeminiAPIKey,
			GenModel:           cfg.GeminiGenModel,
			EmbedModel:         cfg.GeminiEmbedModel,
			Temperature:        cfg.LLMTemperature,
			RequestsPerMinute:  cfg.GeminiRPM,
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		deps.embedder = gemini.NewEmbedder(client)
		deps.generator = gemini.NewGenerator(client)
		deps.close = func() { _ = client.Close() }
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	return deps, nil
}

func (d *pipelineDeps) processUseCase(cfg config.Config, jobs ports.JobReporter, observer usecase.PipelineObserver) *usecase.ProcessBatchUseCase {
	return usecase.NewProcessBatchUseCase(jobs, d.extractor, d.chunker, d.embedder, d.vectorDB, usecase.PipelineOptions{
		EmbedBatchSize:  cfg.EmbedBatchSize,
		EmbedBatchPause: time.Duration(cfg.EmbedBatchPauseMS) * time.Millisecond,
		Observer:        observer,
	})
}
