package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "ingest-workers"

type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
	observeLag     func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// HandlerTimeout bounds one ingestion triggered by a message.
	HandlerTimeout time.Duration
	ClientName     string
	// LagObserver receives the publish-to-receive delay of each event.
	LagObserver func(time.Duration)
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.ClientName
	if name == "" {
		name = "pdf-rag-assistant"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
		observeLag:     options.LagObserver,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

type documentEvent struct {
	DocumentID  string    `json:"document_id"`
	PublishedAt time.Time `json:"published_at"`
}

func encodeEvent(documentID string, now time.Time) ([]byte, error) {
	return json.Marshal(documentEvent{DocumentID: documentID, PublishedAt: now.UTC()})
}

// decodeEvent accepts the JSON event and a bare document id. A bare id has
// a zero PublishedAt.
func decodeEvent(data []byte) (documentEvent, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return documentEvent{}, fmt.Errorf("%w: empty ingestion event", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(raw, "{") {
		return documentEvent{DocumentID: raw}, nil
	}
	var evt documentEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return documentEvent{}, fmt.Errorf("%w: decode ingestion event: %v", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(evt.DocumentID) == "" {
		return documentEvent{}, fmt.Errorf("%w: ingestion event without document_id", domain.ErrInvalidInput)
	}
	return evt, nil
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	payload, err := encodeEvent(documentID, time.Now())
	if err != nil {
		return fmt.Errorf("encode ingestion event: %w", err)
	}
	err = q.executor.Execute(ctx, "nats.publish", func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyPublishError)
	if err != nil {
		return publishError(documentID, err)
	}
	return nil
}

// SubscribeDocumentIngested blocks until ctx is done, then drains the
// subscription so in-flight handlers finish.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		evt, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("ingestion_event_rejected", "error", err)
			return
		}
		documentID := evt.DocumentID
		if q.observeLag != nil && !evt.PublishedAt.IsZero() {
			q.observeLag(time.Since(evt.PublishedAt))
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, documentID); err != nil {
			slog.Error("ingestion_event_failed", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	// Detached from parent so a shutdown lets the running ingestion finish.
	base := context.WithoutCancel(parent)
	if q.handlerTimeout > 0 {
		return context.WithTimeout(base, q.handlerTimeout)
	}
	return context.WithCancel(base)
}
