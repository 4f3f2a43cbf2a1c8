package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type DocumentService struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	index   ports.VectorIndex
	locks   ports.DocumentLocker
}

func NewDocumentService(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	index ports.VectorIndex,
	locks ports.DocumentLocker,
) *DocumentService {
	if locks == nil {
		locks = NewDocumentLocks()
	}
	return &DocumentService{repo: repo, storage: storage, index: index, locks: locks}
}

func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

// Delete removes the document's passages, its stored file and its metadata,
// in that order, so a failure never leaves passages without a document.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	unlock, err := s.locks.LockDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("lock document: %w", err)
	}
	defer unlock()

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	removed, err := s.index.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete passages: %w", err)
	}
	if doc.StoragePath != "" {
		if err := s.storage.Delete(ctx, doc.StoragePath); err != nil {
			return fmt.Errorf("delete stored file: %w", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}

	slog.Info("document_deleted", "document_id", id, "passages_removed", len(removed))
	return nil
}
