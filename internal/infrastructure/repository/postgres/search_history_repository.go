package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type SearchHistoryRepository struct {
	db *sql.DB
}

func NewSearchHistoryRepository(db *sql.DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

func (r *SearchHistoryRepository) Create(ctx context.Context, record *domain.SearchRecord) (int64, error) {
	sources := record.Sources
	if sources == nil {
		sources = []domain.Evidence{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return 0, fmt.Errorf("marshal sources: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
INSERT INTO search_history (user_id, query, response, sources, response_time_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, record.UserID, record.Query, record.Answer, sourcesJSON, record.ResponseTimeMS, createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert search history: %w", err)
	}
	return id, nil
}

// ListByUser returns the user's searches, newest first.
func (r *SearchHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.SearchRecord, error) {
	if limit <= 0 {
		return []domain.SearchRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, query, response, sources, response_time_ms, created_at
FROM search_history
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchRecord, 0, limit)
	for rows.Next() {
		var rec domain.SearchRecord
		var sourcesRaw []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Answer, &sourcesRaw, &rec.ResponseTimeMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		if len(sourcesRaw) > 0 {
			if err := json.Unmarshal(sourcesRaw, &rec.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		if rec.Sources == nil {
			rec.Sources = []domain.Evidence{}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search history: %w", err)
	}
	return out, nil
}

// Delete removes a record only when it belongs to userID.
func (r *SearchHistoryRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM search_history WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete search history: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete search history rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrSearchNotFound, "delete search history", fmt.Errorf("id=%d", id))
	}
	return nil
}

func (r *SearchHistoryRepository) Stats(ctx context.Context, userID string, since time.Time) (domain.SearchStats, error) {
	var stats domain.SearchStats
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(AVG(response_time_ms), 0),
	COUNT(*) FILTER (WHERE created_at >= $2)
FROM search_history
WHERE user_id = $1
`, userID, since).Scan(&stats.TotalSearches, &stats.AverageResponseTime, &stats.RecentSearches)
	if err != nil {
		return domain.SearchStats{}, fmt.Errorf("search stats: %w", err)
	}
	return stats, nil
}
