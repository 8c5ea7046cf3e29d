// Package stats composes the cached fetches, the baseline+delta counter
// and the streak math into the view models the UI consumes, and reacts to
// quote mutations with optimistic updates followed by silent server
// reconciliation.
package stats

import (
	"context"
	"time"

	"github.com/readerbot/statskit/internal/reader"
)

// API is the slice of the Reader client the aggregator consumes.
type API interface {
	GetStats(ctx context.Context, userID string) (*reader.Stats, error)
	GetRecentQuotes(ctx context.Context, userID string, limit int) ([]reader.Quote, error)
	GetQuotes(ctx context.Context, userID string, q reader.QuoteQuery) ([]reader.Quote, error)
	GetActivityPercent(ctx context.Context, userID string) (int, error)
}

// UserProvider supplies the current user ID scoping every cache key and
// API call. An empty ID means the application context has not finished
// initializing, which is a hard precondition failure for every read.
type UserProvider interface {
	CurrentUserID() string
}

// ActivityLevel classifies the user's weekly quoting activity.
type ActivityLevel string

const (
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// Weekly-count thresholds for the activity classification.
const (
	highActivityWeekly   = 15
	mediumActivityWeekly = 5
)

func classifyActivity(weekly int) ActivityLevel {
	switch {
	case weekly >= highActivityWeekly:
		return ActivityHigh
	case weekly >= mediumActivityWeekly:
		return ActivityMedium
	default:
		return ActivityLow
	}
}

// Snapshot is the stats state published to subscribers and persisted in
// the state store. TotalQuotes is always derived from the counter's
// baseline and pending deltas, never trusted independently.
type Snapshot struct {
	BaselineTotal     int           `json:"baselineTotal"`
	PendingAdds       int           `json:"pendingAdds"`
	PendingDeletes    int           `json:"pendingDeletes"`
	TotalQuotes       int           `json:"totalQuotes"`
	CurrentStreak     int           `json:"currentStreak"`
	ComputedStreak    int           `json:"computedStreak"`
	BackendStreak     int           `json:"backendStreak"`
	StreakToYesterday int           `json:"streakToYesterday"`
	IsAwaitingToday   bool          `json:"isAwaitingToday"`
	WeeklyQuotes      int           `json:"weeklyQuotes"`
	FavoriteAuthor    string        `json:"favoriteAuthor"`
	ActivityLevel     ActivityLevel `json:"activityLevel"`
	ActivityPercent   int           `json:"activityPercent"`
	LoadedAt          time.Time     `json:"loadedAt"`
	IsFresh           bool          `json:"isFresh"`
	Loading           bool          `json:"loading"`
}

// DiaryStats is the combined diary view model, recomputed on every call.
type DiaryStats struct {
	TotalQuotes     int    `json:"totalQuotes"`
	WeeklyQuotes    int    `json:"weeklyQuotes"`
	MonthlyQuotes   int    `json:"monthlyQuotes"`
	FavoritesCount  int    `json:"favoritesCount"`
	FavoriteAuthor  string `json:"favoriteAuthor"`
	ActivityPercent int    `json:"activityPercent"`
}

// Progress is the user-progress view: weekly activity, favorite author and
// the merged streak numbers.
type Progress struct {
	WeeklyQuotes      int           `json:"weeklyQuotes"`
	FavoriteAuthor    string        `json:"favoriteAuthor"`
	ActivityLevel     ActivityLevel `json:"activityLevel"`
	ComputedStreak    int           `json:"computedStreak"`
	BackendStreak     int           `json:"backendStreak"`
	CurrentStreak     int           `json:"currentStreak"`
	StreakToYesterday int           `json:"streakToYesterday"`
	IsAwaitingToday   bool          `json:"isAwaitingToday"`
}

// QuoteDetails is the detailed quote-count view.
type QuoteDetails struct {
	MonthlyQuotes  int `json:"monthlyQuotes"`
	FavoritesCount int `json:"favoritesCount"`
}

// Fallbacks used when a cosmetic sub-fetch has nothing better to offer.
const (
	fallbackAuthor          = "—"
	fallbackActivityPercent = 1
)

// Fetch limits mirroring what the diary UI can usefully display.
const (
	recentQuotesLimit   = 200
	detailedQuotesLimit = 500
	authorWindowDays    = 30
	monthlyWindowDays   = 30
	weeklyWindowDays    = 7
)
