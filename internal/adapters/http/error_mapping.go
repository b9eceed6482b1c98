package httpadapter

import (
	"errors"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotReady):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeDetail(w, status, validation.Message)
		return
	}
	writeDetail(w, status, capitalize(err.Error()))
}

// capitalize turns a Go error string into a client-facing sentence.
func capitalize(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
