package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DocumentUploader is the inbound contract for document upload.
type DocumentUploader interface {
	Upload(ctx context.Context, owner domain.Identity, filename, mimeType string, size int64, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the ingestion pipeline for a stored document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string, force bool) (domain.ProcessResult, error)
}

// DocumentManager covers document listing, lookup and removal.
type DocumentManager interface {
	List(ctx context.Context) ([]domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// QuestionAnswerer is the top-level RAG entry point.
type QuestionAnswerer interface {
	Ask(ctx context.Context, user domain.Identity, query string) (*domain.AnswerResult, error)
}

// SearchHistoryService exposes a user's recorded queries.
type SearchHistoryService interface {
	History(ctx context.Context, user domain.Identity, limit int) ([]domain.SearchRecord, error)
	DeleteHistory(ctx context.Context, user domain.Identity, id int64) error
	Stats(ctx context.Context, user domain.Identity) (domain.SearchStats, error)
}

// SampleSeeder loads the built-in sample documents.
type SampleSeeder interface {
	SeedSamples(ctx context.Context, owner domain.Identity) (int, error)
}
