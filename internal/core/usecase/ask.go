package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const processingFailurePrefix = "An error occurred while processing the question: "

// AskObserver receives the outcome of each question.
type AskObserver interface {
	ObserveAsk(ctx context.Context, result string, duration time.Duration, sources int)
}

type AskUseCase struct {
	retriever   *Retriever
	synthesizer *Synthesizer
	history     ports.SearchHistoryRepository
	topK        int
	observer    AskObserver
	now         func() time.Time
}

func NewAskUseCase(
	retriever *Retriever,
	synthesizer *Synthesizer,
	history ports.SearchHistoryRepository,
	topK int,
	observer AskObserver,
) *AskUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &AskUseCase{
		retriever:   retriever,
		synthesizer: synthesizer,
		history:     history,
		topK:        topK,
		observer:    observer,
		now:         time.Now,
	}
}

// Ask answers query for user. Only a blank query is returned as an error;
// retrieval and persistence failures come back as a result with Error set.
func (uc *AskUseCase) Ask(ctx context.Context, user domain.Identity, query string) (*domain.AnswerResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	start := uc.now()
	evidence, err := uc.retriever.Retrieve(ctx, query, uc.topK)
	if err != nil {
		return uc.failed(ctx, user, query, start, err), nil
	}

	answer := uc.synthesizer.Synthesize(ctx, query, evidence)
	elapsed := uc.since(start)

	sources := make([]domain.Evidence, 0, len(evidence))
	for _, e := range evidence {
		if text := truncateRunes(e.Text, excerptRunes); text != e.Text {
			e.Text = text + "..."
		}
		sources = append(sources, e)
	}

	result := &domain.AnswerResult{
		Query:          query,
		Answer:         answer,
		Sources:        sources,
		ResponseTimeMS: elapsed.Milliseconds(),
	}

	id, err := uc.history.Create(ctx, &domain.SearchRecord{
		UserID:         user.UserID,
		Query:          query,
		Answer:         answer,
		Sources:        sources,
		ResponseTimeMS: result.ResponseTimeMS,
		CreatedAt:      start.UTC(),
	})
	if err != nil {
		return uc.failed(ctx, user, query, start, fmt.Errorf("save search history: %w", err)), nil
	}
	result.SearchID = &id

	uc.observe(ctx, "success", elapsed, len(sources))
	slog.Info("ask_completed",
		"user_id", user.UserID,
		"search_id", id,
		"sources", len(sources),
		"duration_ms", result.ResponseTimeMS,
	)
	return result, nil
}

// failed builds the degraded result and records it when the store allows.
func (uc *AskUseCase) failed(ctx context.Context, user domain.Identity, query string, start time.Time, cause error) *domain.AnswerResult {
	elapsed := uc.since(start)
	result := &domain.AnswerResult{
		Query:          query,
		Answer:         processingFailurePrefix + cause.Error(),
		Sources:        []domain.Evidence{},
		ResponseTimeMS: elapsed.Milliseconds(),
		Error:          true,
	}
	slog.Error("ask_failed", "user_id", user.UserID, "error", cause)
	uc.observe(ctx, "error", elapsed, 0)

	id, err := uc.history.Create(context.WithoutCancel(ctx), &domain.SearchRecord{
		UserID:         user.UserID,
		Query:          query,
		Answer:         result.Answer,
		Sources:        result.Sources,
		ResponseTimeMS: result.ResponseTimeMS,
		CreatedAt:      start.UTC(),
	})
	if err != nil {
		slog.Warn("ask_failure_not_recorded", "user_id", user.UserID, "error", err)
		return result
	}
	result.SearchID = &id
	return result
}

func (uc *AskUseCase) since(start time.Time) time.Duration {
	return uc.now().Sub(start)
}

func (uc *AskUseCase) observe(ctx context.Context, result string, d time.Duration, sources int) {
	if uc.observer != nil {
		uc.observer.ObserveAsk(ctx, result, d, sources)
	}
}
