package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const DefaultTopK = 5

type Retriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewRetriever(embedder ports.Embedder, index ports.VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns up to topK passages ordered by similarity, highest first.
// An empty index yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Evidence, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, domain.WrapError(domain.ErrGeneration, "embed query", errors.New("expected exactly one query vector"))
	}

	hits, err := r.index.Query(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	evidence := make([]domain.Evidence, 0, len(hits))
	for _, hit := range hits {
		text := hit.Text
		if text == "" {
			text = hit.Metadata.ChunkText
		}
		evidence = append(evidence, domain.Evidence{
			PassageID:  hit.ID,
			DocumentID: hit.Metadata.DocumentID,
			ChunkIndex: hit.Metadata.ChunkIndex,
			Filename:   hit.Metadata.Filename,
			Text:       text,
			Similarity: similarity(hit.Distance),
		})
	}
	// Ties keep the index order.
	slices.SortStableFunc(evidence, func(a, b domain.Evidence) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	return evidence, nil
}

func similarity(distance float64) float64 {
	return min(max(1-distance, 0), 1)
}
