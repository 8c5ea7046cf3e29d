// Package reader is the HTTP client for the Reader backend's stats API.
// All duck-typed tolerance for the backend's heterogeneous response shapes
// lives in this package's normalization seam; everything above it works
// with strict structs.
package reader

import "time"

// Quote is a diary entry as the backend reports it. Read-only from the
// statistics engine's perspective.
type Quote struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Author     string    `json:"author"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	IsFavorite bool      `json:"isFavorite"`
}

// Stats is the backend's main statistics document, normalized.
type Stats struct {
	TotalQuotes   int `json:"totalQuotes"`
	CurrentStreak int `json:"currentStreak"`
	DaysInApp     int `json:"daysInApp"`
}

// TopBook is one entry of the backend's top-books ranking.
type TopBook struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// QuoteQuery narrows GetQuotes requests.
type QuoteQuery struct {
	Limit         int
	FavoritesOnly bool
}
