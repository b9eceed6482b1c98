package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/llm/prompt"
)

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	model := g.client.client.GenerativeModel(g.client.genModel)
	model.SetTemperature(g.client.temperature)

	promptText := prompt.BuildAnswer(question, chunks)
	var answer string
	err := g.client.call(ctx, "generate", func(callCtx context.Context) error {
		resp, err := model.GenerateContent(callCtx, genai.Text(promptText))
		if err != nil {
			return err
		}
		answer, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("empty generation response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
		// The first candidate with content is the answer.
		if builder.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("generation returned no text")
	}
	return text, nil
}
