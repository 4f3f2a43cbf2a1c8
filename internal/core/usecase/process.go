package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// ProcessObserver receives the outcome of each processing run.
type ProcessObserver interface {
	ObserveProcess(ctx context.Context, result string, duration time.Duration, chunks int)
}

type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	pipeline *IngestionPipeline
	locks    ports.DocumentLocker
	observer ProcessObserver
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	pipeline *IngestionPipeline,
	locks ports.DocumentLocker,
	observer ProcessObserver,
) *ProcessDocumentUseCase {
	if locks == nil {
		locks = NewDocumentLocks()
	}
	return &ProcessDocumentUseCase{
		repo:     repo,
		storage:  storage,
		pipeline: pipeline,
		locks:    locks,
		observer: observer,
	}
}

// ProcessByID ingests a stored document. Already processed documents are
// left alone unless force is set.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string, force bool) (domain.ProcessResult, error) {
	unlock, err := uc.locks.LockDocument(ctx, documentID)
	if err != nil {
		return domain.ProcessResult{}, fmt.Errorf("lock document: %w", err)
	}
	defer unlock()

	start := time.Now()
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.ProcessResult{}, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Processed && !force {
		uc.observe(ctx, "skipped", start, doc.ChunkCount)
		return domain.ProcessResult{DocumentID: doc.ID, ChunkCount: doc.ChunkCount, AlreadyProcessed: true}, nil
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return domain.ProcessResult{}, fmt.Errorf("set status=processing: %w", err)
	}

	count, err := uc.ingest(ctx, doc)
	if err != nil {
		uc.observe(ctx, "failed", start, 0)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return domain.ProcessResult{}, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return domain.ProcessResult{}, err
	}

	if err := uc.repo.MarkProcessed(ctx, documentID, count); err != nil {
		// Passages must not outlive a document that never became ready.
		uc.pipeline.rollback(ctx, documentID)
		uc.observe(ctx, "failed", start, 0)
		return domain.ProcessResult{}, fmt.Errorf("mark processed: %w", err)
	}
	uc.observe(ctx, "success", start, count)
	slog.Info("document_processed",
		"document_id", documentID,
		"chunks", count,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return domain.ProcessResult{DocumentID: documentID, ChunkCount: count}, nil
}

func (uc *ProcessDocumentUseCase) ingest(ctx context.Context, doc *domain.Document) (int, error) {
	body, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("open stored document: %w", err)
	}
	defer body.Close()
	return uc.pipeline.Ingest(ctx, doc.ID, doc.Filename, body)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	// Record the failure even when the caller has gone away.
	return uc.repo.UpdateStatus(context.WithoutCancel(ctx), documentID, domain.StatusFailed, processErr.Error())
}

func (uc *ProcessDocumentUseCase) observe(ctx context.Context, result string, start time.Time, chunks int) {
	if uc.observer != nil {
		uc.observer.ObserveProcess(ctx, result, time.Since(start), chunks)
	}
}
