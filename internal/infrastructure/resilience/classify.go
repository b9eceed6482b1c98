package resilience

import (
	"context"
	"errors"
	"net"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures count against the breaker but are not retried.
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	// Ignored errors are caused by the caller and touch neither.
	Ignored = ErrorClassification{}
)

// Classify handles the cases every adapter shares and asks specific about the
// rest. specific reports false for errors it does not recognise.
func Classify(err error, specific func(error) (ErrorClassification, bool)) ErrorClassification {
	switch {
	case err == nil:
		return Ignored
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignored
	case IsCircuitOpen(err):
		return Transient
	}
	if specific != nil {
		if class, ok := specific(err); ok {
			return class
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Permanent
}

// WrapTemporary tags err with domain.ErrTemporary when classifier considers it
// retryable or the circuit is open.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
