package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func TestRetrieveEmptyIndex(t *testing.T) {
	r := NewRetriever(&keywordEmbedder{keywords: []string{"sensor"}}, &indexFake{})
	got, err := r.Retrieve(context.Background(), "sensor", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestRetrieveSortsAndClampsSimilarity(t *testing.T) {
	index := &indexFake{hits: []domain.IndexHit{
		{ID: "a_0", Text: "far", Distance: 1.4, Metadata: domain.PassageMetadata{DocumentID: "a"}},
		{ID: "b_0", Metadata: domain.PassageMetadata{DocumentID: "b", ChunkText: "from metadata"}, Distance: 0.2},
		{ID: "c_0", Text: "tie one", Distance: 0.5},
		{ID: "d_0", Text: "tie two", Distance: 0.5},
		{ID: "e_0", Text: "negative", Distance: -0.1},
	}}
	r := NewRetriever(&keywordEmbedder{keywords: []string{"x"}}, index)

	got, err := r.Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	order := []string{"e_0", "b_0", "c_0", "d_0", "a_0"}
	for i, id := range order {
		if got[i].PassageID != id {
			t.Fatalf("position %d: want %s got %s", i, id, got[i].PassageID)
		}
	}
	if got[0].Similarity != 1 || got[4].Similarity != 0 {
		t.Fatalf("expected clamped similarity, got %v and %v", got[0].Similarity, got[4].Similarity)
	}
	if got[1].Text != "from metadata" || got[1].DocumentID != "b" {
		t.Fatalf("expected metadata text fallback, got %+v", got[1])
	}
}

func TestRetrieveRespectsTopK(t *testing.T) {
	index := &indexFake{hits: []domain.IndexHit{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	r := NewRetriever(&keywordEmbedder{}, index)
	got, err := r.Retrieve(context.Background(), "q", 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("Retrieve() = %d, %v", len(got), err)
	}
}

func TestRetrievePropagatesErrors(t *testing.T) {
	r := NewRetriever(&keywordEmbedder{err: domain.ErrTemporary}, &indexFake{})
	if _, err := r.Retrieve(context.Background(), "q", 5); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected embed error, got %v", err)
	}

	r = NewRetriever(&keywordEmbedder{}, &indexFake{queryErr: domain.ErrIndexUnavailable})
	if _, err := r.Retrieve(context.Background(), "q", 5); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index error, got %v", err)
	}
}
