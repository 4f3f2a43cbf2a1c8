package domain

import "time"

type SearchRecord struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"user_id"`
	Query          string     `json:"query"`
	Answer         string     `json:"response"`
	Sources        []Evidence `json:"sources"`
	ResponseTimeMS int64      `json:"response_time"`
	CreatedAt      time.Time  `json:"created_at"`
}

type SearchStats struct {
	TotalSearches       int     `json:"total_searches"`
	AverageResponseTime float64 `json:"average_response_time"`
	RecentSearches      int     `json:"recent_searches"`
}
