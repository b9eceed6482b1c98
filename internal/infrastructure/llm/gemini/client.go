// Package gemini talks to the Google Gemini API for embeddings and answers.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
)

type Options struct {
	APIKey             string
	GenModel           string
	EmbedModel         string
	Temperature        float64
	RequestsPerMinute  int
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	client      *genai.Client
	genModel    string
	embedModel  string
	temperature float32
	limiter     *rate.Limiter
	executor    *resilience.Executor
}

func New(ctx context.Context, options Options) (*Client, error) {
	if strings.TrimSpace(options.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(options.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	genModel := options.GenModel
	if genModel == "" {
		genModel = "gemini-2.0-flash"
	}
	embedModel := options.EmbedModel
	if embedModel == "" {
		embedModel = "embedding-001"
	}

	return &Client{
		client:      client,
		genModel:    genModel,
		embedModel:  embedModel,
		temperature: float32(options.Temperature),
		limiter:     newLimiter(options.RequestsPerMinute),
		executor:    options.ResilienceExecutor,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// newLimiter paces requests to rpm; zero or negative disables pacing.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), max(1, rpm/10))
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gemini %s rate limit wait: %w", operation, err)
		}
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "gemini."+operation, fn, classifyGeminiError)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("gemini "+operation, fmt.Errorf("gemini %s: %w", operation, err))
	}
	return nil
}
