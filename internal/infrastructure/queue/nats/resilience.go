package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// classifyPublishError decides whether an ingestion event publish is worth
// another attempt.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		// The event itself is wrong; the broker is healthy.
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// publishError marks broker outages as temporary so the upload reports a
// retryable failure instead of a server error.
func publishError(documentID string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish ingestion event for "+documentID, err)
	}
	return err
}
