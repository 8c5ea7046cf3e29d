package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/readerbot/statskit/internal/errors"
	"github.com/readerbot/statskit/internal/reader"
	"github.com/readerbot/statskit/internal/statscache"
)

type staticUser string

func (u staticUser) CurrentUserID() string { return string(u) }

// callWindow records when a stub method was entered and left, so tests can
// check for overlapping in-flight windows.
type callWindow struct {
	start time.Time
	end   time.Time
}

type stubAPI struct {
	mu sync.Mutex

	stats      *reader.Stats
	statsErr   error
	recent     []reader.Quote
	recentErr  error
	quotes     []reader.Quote
	quotesErr  error
	percent    int
	percentErr error

	delay   time.Duration
	windows map[string][]callWindow
	calls   map[string]int
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		stats:   &reader.Stats{},
		windows: make(map[string][]callWindow),
		calls:   make(map[string]int),
	}
}

func (s *stubAPI) enter(method string) callWindow {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()

	w := callWindow{start: time.Now()}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return w
}

func (s *stubAPI) leave(method string, w callWindow) {
	w.end = time.Now()
	s.mu.Lock()
	s.windows[method] = append(s.windows[method], w)
	s.mu.Unlock()
}

func (s *stubAPI) GetStats(ctx context.Context, userID string) (*reader.Stats, error) {
	w := s.enter("GetStats")
	defer s.leave("GetStats", w)
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	stats := *s.stats
	return &stats, nil
}

func (s *stubAPI) GetRecentQuotes(ctx context.Context, userID string, limit int) ([]reader.Quote, error) {
	w := s.enter("GetRecentQuotes")
	defer s.leave("GetRecentQuotes", w)
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.recent, nil
}

func (s *stubAPI) GetQuotes(ctx context.Context, userID string, q reader.QuoteQuery) ([]reader.Quote, error) {
	w := s.enter("GetQuotes")
	defer s.leave("GetQuotes", w)
	if s.quotesErr != nil {
		return nil, s.quotesErr
	}
	return s.quotes, nil
}

func (s *stubAPI) GetActivityPercent(ctx context.Context, userID string) (int, error) {
	w := s.enter("GetActivityPercent")
	defer s.leave("GetActivityPercent", w)
	if s.percentErr != nil {
		return 0, s.percentErr
	}
	return s.percent, nil
}

func (s *stubAPI) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func newTestAggregator(t *testing.T, api API, user UserProvider) (*Aggregator, *QuoteList) {
	t.Helper()
	cache, err := statscache.New(statscache.DefaultConfig())
	require.NoError(t, err)
	local := NewQuoteList()
	return NewAggregator(api, cache, user, local, nil), local
}

func quoteAt(id, author string, t time.Time) reader.Quote {
	return reader.Quote{ID: id, Author: author, CreatedAt: t}
}

func TestMainStatsRequiresUser(t *testing.T) {
	agg, _ := newTestAggregator(t, newStubAPI(), staticUser(""))

	_, err := agg.MainStats(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotReady(err))
}

func TestMainStatsCached(t *testing.T) {
	api := newStubAPI()
	api.stats = &reader.Stats{TotalQuotes: 10, CurrentStreak: 2}
	agg, _ := newTestAggregator(t, api, staticUser("u1"))
	ctx := context.Background()

	first, err := agg.MainStats(ctx)
	require.NoError(t, err)
	second, err := agg.MainStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 10, first.TotalQuotes)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.callCount("GetStats"))
}

func TestUserProgressComputation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	api := newStubAPI()
	api.stats = &reader.Stats{CurrentStreak: 1}
	api.recent = []reader.Quote{
		quoteAt("1", "Seneca", now.Add(-time.Hour)), // today
		quoteAt("2", "Seneca", now.AddDate(0, 0, -1)),
		quoteAt("3", "Marcus Aurelius", now.AddDate(0, 0, -2)),
		quoteAt("4", "Seneca", now.AddDate(0, 0, -3)),
		quoteAt("5", "Marcus Aurelius", now.AddDate(0, 0, -10)),
	}
	agg, _ := newTestAggregator(t, api, staticUser("u1"))
	agg.now = func() time.Time { return now }

	progress, err := agg.UserProgress(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, progress.WeeklyQuotes)
	assert.Equal(t, "Seneca", progress.FavoriteAuthor)
	assert.Equal(t, ActivityLow, progress.ActivityLevel)
	assert.Equal(t, 4, progress.ComputedStreak)
	assert.Equal(t, 1, progress.BackendStreak)
	assert.Equal(t, 4, progress.CurrentStreak, "max of computed and backend")
	assert.False(t, progress.IsAwaitingToday)
}

func TestUserProgressBackendStreakWins(t *testing.T) {
	api := newStubAPI()
	api.stats = &reader.Stats{CurrentStreak: 7}
	api.recent = nil
	agg, _ := newTestAggregator(t, api, staticUser("u1"))

	progress, err := agg.UserProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, progress.ComputedStreak)
	assert.Equal(t, 7, progress.CurrentStreak)
}

func TestUserProgressFallsBackToLocalQuotes(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	api := newStubAPI()
	api.recentErr = errors.New("network down")
	agg, local := newTestAggregator(t, api, staticUser("u1"))
	agg.now = func() time.Time { return now }
	local.Replace([]reader.Quote{
		quoteAt("1", "Epictetus", now.Add(-time.Minute)),
	})

	progress, err := agg.UserProgress(context.Background())
	require.NoError(t, err, "transient unavailability never errors")
	assert.Equal(t, 1, progress.WeeklyQuotes)
	assert.Equal(t, "Epictetus", progress.FavoriteAuthor)
	assert.Equal(t, 1, progress.ComputedStreak)
}

func TestFavoriteAuthorTieBreak(t *testing.T) {
	now := time.Now()
	quotes := []reader.Quote{
		quoteAt("1", "A", now), quoteAt("2", "B", now),
		quoteAt("3", "A", now), quoteAt("4", "B", now),
		quoteAt("5", "A", now), quoteAt("6", "B", now),
	}

	// A:3 B:3 with A encountered first: first to reach the max wins.
	assert.Equal(t, "A", topAuthor(quotes, now.AddDate(0, 0, -30)))
}

func TestTopAuthorWindowAndMissingAuthor(t *testing.T) {
	now := time.Now()
	quotes := []reader.Quote{
		quoteAt("1", "Old", now.AddDate(0, 0, -40)), // outside window
		quoteAt("2", "Old", now.AddDate(0, 0, -41)),
		quoteAt("3", "", now), // anonymous, ignored
		quoteAt("4", "New", now),
	}

	assert.Equal(t, "New", topAuthor(quotes, now.AddDate(0, 0, -30)))
}

func TestActivityClassification(t *testing.T) {
	assert.Equal(t, ActivityLow, classifyActivity(0))
	assert.Equal(t, ActivityLow, classifyActivity(4))
	assert.Equal(t, ActivityMedium, classifyActivity(5))
	assert.Equal(t, ActivityMedium, classifyActivity(14))
	assert.Equal(t, ActivityHigh, classifyActivity(15))
}

func TestDetailedQuoteStats(t *testing.T) {
	now := time.Now()
	api := newStubAPI()
	api.quotes = []reader.Quote{
		{ID: "1", CreatedAt: now.AddDate(0, 0, -5), IsFavorite: true},
		{ID: "2", CreatedAt: now.AddDate(0, 0, -40)},
		{ID: "3", CreatedAt: now.AddDate(0, 0, -1)},
	}
	agg, _ := newTestAggregator(t, api, staticUser("u1"))

	details, err := agg.DetailedQuoteStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, details.MonthlyQuotes)
	assert.Equal(t, 1, details.FavoritesCount)
}

func TestActivityPercentFallback(t *testing.T) {
	api := newStubAPI()
	api.percentErr = errors.New("boom")
	agg, _ := newTestAggregator(t, api, staticUser("u1"))

	assert.Equal(t, 1, agg.ActivityPercent(context.Background()))

	// The failure is not cached: a later success comes through.
	api.mu.Lock()
	api.percentErr = nil
	api.percent = 63
	api.mu.Unlock()
	assert.Equal(t, 63, agg.ActivityPercent(context.Background()))
}

func TestDiaryStatsMergesWithFallbacks(t *testing.T) {
	api := newStubAPI()
	api.stats = &reader.Stats{TotalQuotes: 20}
	api.percentErr = errors.New("boom")
	agg, _ := newTestAggregator(t, api, staticUser("u1"))

	ds, err := agg.DiaryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, ds.TotalQuotes)
	assert.Equal(t, "—", ds.FavoriteAuthor, "missing author falls back")
	assert.Equal(t, 1, ds.ActivityPercent, "failed percent falls back")
}

func TestDiaryStatsMainFailurePropagates(t *testing.T) {
	api := newStubAPI()
	api.statsErr = errors.New("server down")
	agg, _ := newTestAggregator(t, api, staticUser("u1"))

	_, err := agg.DiaryStats(context.Background())
	assert.Error(t, err)
}

func TestDiaryStatsFetchesConcurrently(t *testing.T) {
	api := newStubAPI()
	api.delay = 40 * time.Millisecond
	agg, _ := newTestAggregator(t, api, staticUser("u1"))

	_, err := agg.DiaryStats(context.Background())
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()

	// The four underlying fetches must overlap: every method's first call
	// starts before the earliest one finishes.
	var earliestEnd time.Time
	var latestStart time.Time
	for _, method := range []string{"GetStats", "GetRecentQuotes", "GetQuotes", "GetActivityPercent"} {
		windows := api.windows[method]
		require.NotEmpty(t, windows, "expected %s to be called", method)
		w := windows[0]
		if earliestEnd.IsZero() || w.end.Before(earliestEnd) {
			earliestEnd = w.end
		}
		if w.start.After(latestStart) {
			latestStart = w.start
		}
	}
	assert.True(t, latestStart.Before(earliestEnd),
		"in-flight windows must overlap, got latest start %v after earliest end %v",
		latestStart, earliestEnd)
}
