package gemini

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
)

// classifyGeminiError retries quota and server errors; other API errors are
// problems with the request itself.
func classifyGeminiError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) (resilience.ErrorClassification, bool) {
		var apiErr *googleapi.Error
		if !errors.As(err, &apiErr) {
			return resilience.ErrorClassification{}, false
		}
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Transient, true
		default:
			return resilience.Ignored, true
		}
	})
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporary(operation, err, classifyGeminiError)
}
