package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func TestEventRoundTrip(t *testing.T) {
	payload, err := encodeEvent("doc-1", time.Now())
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	got, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if got.DocumentID != "doc-1" || got.PublishedAt.IsZero() {
		t.Fatalf("expected doc-1 with publish time, got %+v", got)
	}
}

func TestDecodeEventAcceptsBareID(t *testing.T) {
	got, err := decodeEvent([]byte(" doc-7\n"))
	if err != nil || got.DocumentID != "doc-7" || !got.PublishedAt.IsZero() {
		t.Fatalf("expected bare doc-7, got %+v err=%v", got, err)
	}
}

func TestDecodeEventRejectsEmpty(t *testing.T) {
	for _, raw := range []string{"", "{}", `{"document_id":"  "}`, "{broken"} {
		if _, err := decodeEvent([]byte(raw)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", raw, err)
		}
	}
}

func TestClassifyPublishError(t *testing.T) {
	if c := classifyPublishError(nats.ErrNoServers); !c.Retryable {
		t.Fatalf("expected no servers to be retryable")
	}
	if c := classifyPublishError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("expected cancellation to be ignored, got %+v", c)
	}
	if c := classifyPublishError(fmt.Errorf("nats publish: %w", nats.ErrMaxPayload)); c.Retryable || c.RecordFailure {
		t.Fatalf("oversized event must not trip the breaker, got %+v", c)
	}
	err := publishError("doc-1", nats.ErrTimeout)
	if !domain.IsKind(err, domain.ErrTemporary) || !strings.Contains(err.Error(), "doc-1") {
		t.Fatalf("expected temporary error naming the document, got %v", err)
	}
	errBad := errors.New("bad subject")
	if err := publishError("doc-1", errBad); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("did not expect temporary for %v", err)
	}
}

func TestHandlerContextSurvivesParentCancel(t *testing.T) {
	q := &Queue{handlerTimeout: time.Second}
	parent, cancel := context.WithCancel(context.Background())
	ctx, done := q.handlerContext(parent)
	defer done()
	cancel()
	if ctx.Err() != nil {
		t.Fatalf("handler context must outlive parent cancel")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected handler deadline")
	}
}
