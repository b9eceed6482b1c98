package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) (resilience.ErrorClassification, bool) {
		switch {
		case errors.Is(err, nats.ErrNoResponders):
			// No worker is listening; the connection itself is fine.
			return resilience.Ignored, true
		case errors.Is(err, nats.ErrNoServers),
			errors.Is(err, nats.ErrTimeout),
			errors.Is(err, nats.ErrConnectionClosed),
			errors.Is(err, nats.ErrDisconnected):
			return resilience.Transient, true
		}
		return resilience.ErrorClassification{}, false
	})
}

func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}
