package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed embeds document chunks in one batch request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := e.client.client.EmbeddingModel(e.client.embedModel)
	model.TaskType = genai.TaskTypeRetrievalDocument

	var vectors [][]float32
	err := e.client.call(ctx, "embed", func(callCtx context.Context) error {
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		resp, err := model.BatchEmbedContents(callCtx, batch)
		if err != nil {
			return err
		}
		vectors, err = batchVectors(resp, len(texts))
		return err
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	model := e.client.client.EmbeddingModel(e.client.embedModel)
	model.TaskType = genai.TaskTypeRetrievalQuery

	var vector []float32
	err := e.client.call(ctx, "embed_query", func(callCtx context.Context) error {
		resp, err := model.EmbedContent(callCtx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return fmt.Errorf("empty embedding result")
		}
		vector = resp.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func batchVectors(resp *genai.BatchEmbedContentsResponse, want int) ([][]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty batch embedding response")
	}
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("batch embedding returned %d vectors for %d texts", len(resp.Embeddings), want)
	}
	vectors := make([][]float32, 0, want)
	for i, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors = append(vectors, embedding.Values)
	}
	return vectors, nil
}
