package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const (
	DefaultHistoryLimit = 20
	maxHistoryLimit     = 100
	recentSearchWindow  = 7 * 24 * time.Hour
)

type SearchHistoryUseCase struct {
	repo ports.SearchHistoryRepository
	now  func() time.Time
}

func NewSearchHistoryUseCase(repo ports.SearchHistoryRepository) *SearchHistoryUseCase {
	return &SearchHistoryUseCase{repo: repo, now: time.Now}
}

func (uc *SearchHistoryUseCase) History(ctx context.Context, user domain.Identity, limit int) ([]domain.SearchRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	records, err := uc.repo.ListByUser(ctx, user.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	return records, nil
}

// DeleteHistory removes one of the user's own records.
func (uc *SearchHistoryUseCase) DeleteHistory(ctx context.Context, user domain.Identity, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid search id %d", domain.ErrInvalidInput, id)
	}
	if err := uc.repo.Delete(ctx, user.UserID, id); err != nil {
		return fmt.Errorf("delete search history: %w", err)
	}
	return nil
}

// Stats counts all searches of the user plus those of the last seven days.
func (uc *SearchHistoryUseCase) Stats(ctx context.Context, user domain.Identity) (domain.SearchStats, error) {
	stats, err := uc.repo.Stats(ctx, user.UserID, uc.now().UTC().Add(-recentSearchWindow))
	if err != nil {
		return domain.SearchStats{}, fmt.Errorf("search stats: %w", err)
	}
	return stats, nil
}
