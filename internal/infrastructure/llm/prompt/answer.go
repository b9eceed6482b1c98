// Package prompt holds the question answering template shared by the LLM providers.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

const answerTemplate = `Answer the questions as detailed as possible from the provided context, make sure to provide all the details, if the answer is not in the provided context just say, "answer is not available in the context", don't provide the wrong answer

Context:
 %s?

Question:
 %s

Answer:
`

// BuildAnswer fills the answer template. Retrieved chunks are joined in rank order.
func BuildAnswer(question string, chunks []domain.RetrievedChunk) string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	return fmt.Sprintf(answerTemplate, strings.Join(texts, "\n\n"), question)
}
