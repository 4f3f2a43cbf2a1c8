package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const rollbackTimeout = 30 * time.Second

// IngestionPipeline turns one PDF into indexed passages. It does not touch
// document metadata; callers decide what a success or failure means.
type IngestionPipeline struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
}

func NewIngestionPipeline(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *IngestionPipeline {
	return &IngestionPipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
	}
}

func PassageID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// Ingest returns the number of passages indexed for documentID. On failure
// no passages of the document remain in the index.
func (p *IngestionPipeline) Ingest(ctx context.Context, documentID, filename string, body io.Reader) (int, error) {
	text, err := p.extractor.Extract(ctx, body)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("document has no retainable text"))
	}

	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(
			domain.ErrGeneration,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if _, err := p.index.Delete(ctx, documentID); err != nil {
		return 0, fmt.Errorf("remove previous passages: %w", err)
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for i, chunk := range chunks {
		entries = append(entries, domain.IndexEntry{
			ID:     PassageID(documentID, i),
			Vector: vectors[i],
			Text:   chunk,
			Metadata: domain.PassageMetadata{
				DocumentID: documentID,
				Filename:   filename,
				ChunkIndex: i,
				ChunkText:  chunk,
			},
		})
	}

	if err := p.index.Insert(ctx, entries); err != nil {
		p.rollback(ctx, documentID)
		return 0, fmt.Errorf("index passages: %w", err)
	}
	return len(entries), nil
}

// rollback runs detached from the request so a cancelled insert is still cleaned up.
func (p *IngestionPipeline) rollback(parent context.Context, documentID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), rollbackTimeout)
	defer cancel()
	if _, err := p.index.Delete(ctx, documentID); err != nil {
		slog.Error("ingest_rollback_failed", "document_id", documentID, "error", err)
	}
}
