package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DocumentRepository persists and reads document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkProcessed(ctx context.Context, id string, chunkCount int) error
	Delete(ctx context.Context, id string) error
}

// SearchHistoryRepository persists completed queries per user.
type SearchHistoryRepository interface {
	Create(ctx context.Context, record *domain.SearchRecord) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.SearchRecord, error)
	Delete(ctx context.Context, userID string, id int64) error
	Stats(ctx context.Context, userID string, since time.Time) (domain.SearchStats, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor turns a PDF byte stream into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, body io.Reader) (string, error)
}

// Embedder maps a batch of texts to fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits text into overlapping passages.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex stores passages and answers nearest-neighbour queries.
// Delete and Get filter by document id and return passage ids.
type VectorIndex interface {
	Insert(ctx context.Context, entries []domain.IndexEntry) error
	Query(ctx context.Context, vector []float32, topK int) ([]domain.IndexHit, error)
	Delete(ctx context.Context, documentID string) ([]string, error)
	Get(ctx context.Context, documentID string) ([]string, error)
}

// Completer is the optional generative model capability.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Authenticator resolves a bearer token into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

// DocumentLocker serializes ingestion and deletion of one document id across
// every process sharing the same metadata store.
type DocumentLocker interface {
	LockDocument(ctx context.Context, documentID string) (unlock func(), err error)
}
