package usecase

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const (
	DefaultMaxUploadBytes int64 = 50 << 20
	pdfMimeType                 = "application/pdf"
)

var pdfMagic = []byte("%PDF")

type UploadDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	maxBytes int64
}

// NewUploadDocumentUseCase builds the upload flow. queue may be nil, in which
// case documents wait for an explicit process call.
func NewUploadDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	maxBytes int64,
) *UploadDocumentUseCase {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadDocumentUseCase{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		maxBytes: maxBytes,
	}
}

func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	owner domain.Identity,
	filename, mimeType string,
	size int64,
	body io.Reader,
) (*domain.Document, error) {
	if !owner.IsAdmin() {
		return nil, fmt.Errorf("%w: only admin users can upload documents", domain.ErrForbidden)
	}
	filename = strings.TrimSpace(filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are allowed", domain.ErrInvalidInput)
	}
	if size > uc.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, uc.maxBytes)
	}

	br := bufio.NewReader(body)
	head, err := br.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return nil, domain.ErrNotAPDF
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	counter := &countingReader{r: io.LimitReader(br, uc.maxBytes+1)}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if counter.n > uc.maxBytes {
		uc.discard(ctx, storageKey)
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, uc.maxBytes)
	}

	if mimeType == "" {
		mimeType = pdfMimeType
	}
	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		SizeBytes:   counter.n,
		UploadedBy:  owner.UserID,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		uc.discard(ctx, storageKey)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if uc.queue != nil {
		if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
			// The document stays uploaded and can be processed explicitly.
			slog.Warn("publish_ingestion_event_failed", "document_id", doc.ID, "error", err)
		}
	}

	return doc, nil
}

func (uc *UploadDocumentUseCase) discard(ctx context.Context, key string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("discard_upload_failed", "storage_key", key, "error", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.pdf"
	}
	return base
}
