package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/memory"
)

func newAskFixture(embedder *keywordEmbedder, index *indexFake, completer *completerFake, history *historyFake) (*AskUseCase, *observerFake) {
	var synth *Synthesizer
	if completer != nil {
		synth = NewSynthesizer(completer, 0, -1)
	} else {
		synth = NewSynthesizer(nil, 0, -1)
	}
	observer := &observerFake{}
	uc := NewAskUseCase(NewRetriever(embedder, index), synth, history, 0, observer)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	uc.now = func() time.Time {
		clock = clock.Add(150 * time.Millisecond)
		return clock
	}
	return uc, observer
}

func TestAskRejectsBlankQuery(t *testing.T) {
	history := &historyFake{}
	uc, _ := newAskFixture(&keywordEmbedder{}, &indexFake{}, nil, history)

	_, err := uc.Ask(context.Background(), regularUser, "   ")
	if !errors.Is(err, domain.ErrEmptyQuery) || !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected empty query error, got %v", err)
	}
	if len(history.records) != 0 {
		t.Fatalf("blank query must not be recorded")
	}
}

func TestAskPersistsResult(t *testing.T) {
	index := &indexFake{hits: []domain.IndexHit{
		{ID: "doc-1_0", Text: "sensor fusion", Distance: 0.1, Metadata: domain.PassageMetadata{DocumentID: "doc-1", Filename: "a.pdf"}},
	}}
	history := &historyFake{}
	completer := &completerFake{answer: "answer"}
	uc, observer := newAskFixture(&keywordEmbedder{keywords: []string{"sensor"}}, index, completer, history)

	got, err := uc.Ask(context.Background(), regularUser, "  sensor?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.Error || got.Answer != "answer" || got.Query != "sensor?" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.SearchID == nil || *got.SearchID != 1 {
		t.Fatalf("expected search id 1, got %v", got.SearchID)
	}
	if got.ResponseTimeMS != 150 {
		t.Fatalf("expected 150ms, got %d", got.ResponseTimeMS)
	}
	rec := history.records[0]
	if rec.UserID != regularUser.UserID || rec.Query != "sensor?" || len(rec.Sources) != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if observer.results[0] != "success" {
		t.Fatalf("unexpected observations: %v", observer.results)
	}
}

func TestAskRetrievalFailureReturnsErrorResult(t *testing.T) {
	history := &historyFake{}
	index := &indexFake{queryErr: domain.WrapError(domain.ErrIndexUnavailable, "qdrant", errors.New("connection refused"))}
	uc, observer := newAskFixture(&keywordEmbedder{}, index, nil, history)

	got, err := uc.Ask(context.Background(), regularUser, "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !got.Error || !strings.HasPrefix(got.Answer, processingFailurePrefix) || !strings.Contains(got.Answer, "connection refused") {
		t.Fatalf("unexpected failure result: %+v", got)
	}
	if got.Sources == nil || len(got.Sources) != 0 {
		t.Fatalf("expected empty sources, got %#v", got.Sources)
	}
	if len(history.records) != 1 || got.SearchID == nil {
		t.Fatalf("expected failure recorded, got %d records", len(history.records))
	}
	if observer.results[0] != "error" {
		t.Fatalf("unexpected observations: %v", observer.results)
	}
}

func TestAskPersistenceFailureReturnsErrorResult(t *testing.T) {
	history := &historyFake{createErr: errors.New("db down")}
	uc, _ := newAskFixture(&keywordEmbedder{}, &indexFake{}, nil, history)

	got, err := uc.Ask(context.Background(), regularUser, "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !got.Error || got.SearchID != nil || !strings.Contains(got.Answer, "db down") {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestAskTruncatesSourceExcerpts(t *testing.T) {
	long := strings.Repeat("가", 250)
	index := &indexFake{hits: []domain.IndexHit{
		{ID: "a_0", Text: long, Metadata: domain.PassageMetadata{Filename: "a.pdf"}},
		{ID: "b_0", Text: "short", Metadata: domain.PassageMetadata{Filename: "b.pdf"}},
	}}
	uc, _ := newAskFixture(&keywordEmbedder{}, index, &completerFake{answer: "ok"}, &historyFake{})

	got, err := uc.Ask(context.Background(), regularUser, "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.Sources[0].Text != strings.Repeat("가", excerptRunes)+"..." {
		t.Fatalf("expected truncated excerpt, got %d runes", len([]rune(got.Sources[0].Text)))
	}
	if got.Sources[1].Text != "short" {
		t.Fatalf("short excerpts must be unchanged, got %q", got.Sources[1].Text)
	}
}

func TestAskEndToEndWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	embedder := &keywordEmbedder{keywords: []string{"센서", "배터리", "특허"}}
	index := memory.NewIndex()
	pipeline := NewIngestionPipeline(&extractorFake{}, lineChunker{}, embedder, index)

	docs := map[string]string{
		"sensors": "자율주행 차량의 라이다 센서와 카메라 센서를 융합하는 방법.",
		"battery": "전기차 배터리 관리 시스템의 충전 상태 추정.",
	}
	for id, text := range docs {
		if _, err := pipeline.Ingest(ctx, id, id+".pdf", strings.NewReader(text)); err != nil {
			t.Fatalf("Ingest(%s) error = %v", id, err)
		}
	}

	history := &historyFake{}
	uc := NewAskUseCase(NewRetriever(embedder, index), NewSynthesizer(nil, 0, -1), history, 1, nil)
	got, err := uc.Ask(ctx, regularUser, "센서 융합은 어떻게 하나요?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.Error || len(got.Sources) != 1 || got.Sources[0].DocumentID != "sensors" {
		t.Fatalf("expected the sensors passage, got %+v", got)
	}
	if !strings.Contains(got.Answer, "sensors.pdf") {
		t.Fatalf("expected development answer naming the source, got %q", got.Answer)
	}
	if got.Sources[0].Similarity <= 0 || got.Sources[0].Similarity > 1 {
		t.Fatalf("similarity out of range: %v", got.Sources[0].Similarity)
	}
}
