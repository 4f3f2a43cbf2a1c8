package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const sampleDocumentSize = 1000

// SampleSeedUseCase inserts demo documents that are indexed directly from
// their content, one passage each, without a stored file.
type SampleSeedUseCase struct {
	repo     ports.DocumentRepository
	embedder ports.Embedder
	index    ports.VectorIndex
	samples  []domain.SampleDocument
}

func NewSampleSeedUseCase(
	repo ports.DocumentRepository,
	embedder ports.Embedder,
	index ports.VectorIndex,
	samples []domain.SampleDocument,
) *SampleSeedUseCase {
	return &SampleSeedUseCase{repo: repo, embedder: embedder, index: index, samples: samples}
}

func (uc *SampleSeedUseCase) SeedSamples(ctx context.Context, owner domain.Identity) (int, error) {
	if !owner.IsAdmin() {
		return 0, fmt.Errorf("%w: only admin users can add sample data", domain.ErrForbidden)
	}
	if len(uc.samples) == 0 {
		return 0, nil
	}

	contents := make([]string, 0, len(uc.samples))
	for _, s := range uc.samples {
		contents = append(contents, s.Content)
	}
	vectors, err := uc.embedder.Embed(ctx, contents)
	if err != nil {
		return 0, fmt.Errorf("embed samples: %w", err)
	}
	if len(vectors) != len(uc.samples) {
		return 0, domain.WrapError(domain.ErrGeneration, "embed samples", errors.New("vectors/samples mismatch"))
	}

	now := time.Now().UTC()
	for i, sample := range uc.samples {
		doc := &domain.Document{
			ID:         uuid.NewString(),
			Filename:   sample.Title + ".pdf",
			MimeType:   pdfMimeType,
			SizeBytes:  sampleDocumentSize,
			UploadedBy: owner.UserID,
			Processed:  true,
			ChunkCount: 1,
			Status:     domain.StatusReady,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := uc.repo.Create(ctx, doc); err != nil {
			return i, fmt.Errorf("create sample document: %w", err)
		}
		entry := domain.IndexEntry{
			ID:     PassageID(doc.ID, 0),
			Vector: vectors[i],
			Text:   sample.Content,
			Metadata: domain.PassageMetadata{
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				ChunkIndex: 0,
				ChunkText:  sample.Content,
			},
		}
		if err := uc.index.Insert(ctx, []domain.IndexEntry{entry}); err != nil {
			return i, fmt.Errorf("index sample document: %w", err)
		}
	}
	return len(uc.samples), nil
}
