package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	apperrors "github.com/readerbot/statskit/internal/errors"
	"github.com/readerbot/statskit/internal/reader"
	"github.com/readerbot/statskit/internal/statscache"
	"github.com/readerbot/statskit/internal/streak"
)

// TTLs holds the per-view cache lifetimes.
type TTLs struct {
	Short    time.Duration
	Default  time.Duration
	Progress time.Duration
}

// DefaultTTLs returns the standard cache lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Short:    statscache.TTLShort,
		Default:  statscache.TTLDefault,
		Progress: statscache.TTLProgress,
	}
}

// Aggregator composes the underlying fetches into the combined view
// models. Every fetch goes through the TTL cache, keyed by user ID, so
// concurrent consumers share one network round trip per key.
type Aggregator struct {
	api   API
	cache *statscache.TTLCache
	users UserProvider
	local *QuoteList
	ttls  TTLs
	now   func() time.Time
	log   *slog.Logger
}

// NewAggregator creates an aggregator. local may be empty but not nil; it
// is the fallback source when quote fetches fail.
func NewAggregator(api API, cache *statscache.TTLCache, users UserProvider, local *QuoteList, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		api:   api,
		cache: cache,
		users: users,
		local: local,
		ttls:  DefaultTTLs(),
		now:   time.Now,
		log:   log.With("component", "stats-aggregator"),
	}
}

// SetTTLs overrides the cache lifetimes. Zero fields keep their defaults.
func (a *Aggregator) SetTTLs(t TTLs) {
	if t.Short > 0 {
		a.ttls.Short = t.Short
	}
	if t.Default > 0 {
		a.ttls.Default = t.Default
	}
	if t.Progress > 0 {
		a.ttls.Progress = t.Progress
	}
}

// userID resolves the current user, the one precondition every read shares.
func (a *Aggregator) userID() (string, error) {
	id := a.users.CurrentUserID()
	if id == "" {
		return "", apperrors.ErrUserNotReady
	}
	return id, nil
}

// MainStats fetches the backend's main statistics document.
func (a *Aggregator) MainStats(ctx context.Context) (*reader.Stats, error) {
	userID, err := a.userID()
	if err != nil {
		return nil, err
	}

	v, err := a.cache.Cached(ctx, "main-stats:"+userID, a.ttls.Short,
		func(ctx context.Context) (any, error) {
			return a.api.GetStats(ctx, userID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load main stats: %w", err)
	}
	return v.(*reader.Stats), nil
}

// UserProgress computes the weekly/streak/author view. Transient fetch
// failures fall back to the locally held quote list; this method never
// errors on unavailability, only on the missing-user precondition.
func (a *Aggregator) UserProgress(ctx context.Context) (*Progress, error) {
	userID, err := a.userID()
	if err != nil {
		return nil, err
	}

	v, err := a.cache.Cached(ctx, "user-progress:"+userID, a.ttls.Progress,
		func(ctx context.Context) (any, error) {
			quotes, err := a.api.GetRecentQuotes(ctx, userID, recentQuotesLimit)
			if err != nil {
				a.log.WarnContext(ctx, "recent quotes fetch failed, using local list", "err", err)
				quotes = a.local.Quotes()
			}

			backendStreak := 0
			if main, err := a.MainStats(ctx); err == nil {
				backendStreak = main.CurrentStreak
			} else {
				a.log.DebugContext(ctx, "backend streak unavailable", "err", err)
			}

			return a.computeProgress(quotes, backendStreak), nil
		})
	if err != nil {
		return nil, err
	}
	return v.(*Progress), nil
}

// computeProgress derives the progress view from a quote list plus the
// backend-reported streak.
func (a *Aggregator) computeProgress(quotes []reader.Quote, backendStreak int) *Progress {
	now := a.now()

	times := make([]time.Time, 0, len(quotes))
	for _, q := range quotes {
		times = append(times, q.CreatedAt)
	}

	computed := streak.Current(times, now)
	toYesterday, awaiting := streak.ToYesterday(times, computed, now)

	weekly := countSince(quotes, now.AddDate(0, 0, -weeklyWindowDays))

	// The backend may not have observed today's local quote yet; taking
	// the max protects the streak the user can already see.
	current := computed
	if backendStreak > current {
		current = backendStreak
	}

	return &Progress{
		WeeklyQuotes:      weekly,
		FavoriteAuthor:    topAuthor(quotes, now.AddDate(0, 0, -authorWindowDays)),
		ActivityLevel:     classifyActivity(weekly),
		ComputedStreak:    computed,
		BackendStreak:     backendStreak,
		CurrentStreak:     current,
		StreakToYesterday: toYesterday,
		IsAwaitingToday:   awaiting,
	}
}

// DetailedQuoteStats counts quotes within the trailing month and flagged
// favorites. Falls back to the local list on fetch failure.
func (a *Aggregator) DetailedQuoteStats(ctx context.Context) (*QuoteDetails, error) {
	userID, err := a.userID()
	if err != nil {
		return nil, err
	}

	v, err := a.cache.Cached(ctx, "quote-details:"+userID, a.ttls.Short,
		func(ctx context.Context) (any, error) {
			quotes, err := a.api.GetQuotes(ctx, userID, reader.QuoteQuery{Limit: detailedQuotesLimit})
			if err != nil {
				a.log.WarnContext(ctx, "quote fetch failed, using local list", "err", err)
				quotes = a.local.Quotes()
			}

			details := &QuoteDetails{
				MonthlyQuotes: countSince(quotes, a.now().AddDate(0, 0, -monthlyWindowDays)),
			}
			for _, q := range quotes {
				if q.IsFavorite {
					details.FavoritesCount++
				}
			}
			return details, nil
		})
	if err != nil {
		return nil, err
	}
	return v.(*QuoteDetails), nil
}

// ActivityPercent returns the user's activity percentile. The metric is
// cosmetic: any failure yields the safe default instead of an error, and
// the failure is never cached.
func (a *Aggregator) ActivityPercent(ctx context.Context) int {
	userID, err := a.userID()
	if err != nil {
		return fallbackActivityPercent
	}

	v, err := a.cache.Cached(ctx, "activity-percent:"+userID, a.ttls.Default,
		func(ctx context.Context) (any, error) {
			return a.api.GetActivityPercent(ctx, userID)
		})
	if err != nil {
		a.log.DebugContext(ctx, "activity percent unavailable, using default", "err", err)
		return fallbackActivityPercent
	}
	return v.(int)
}

// DiaryStats runs the four underlying fetches concurrently and merges them
// into the diary view. Only a main-stats failure propagates; the other
// inputs degrade to their documented fallbacks.
func (a *Aggregator) DiaryStats(ctx context.Context) (*DiaryStats, error) {
	if _, err := a.userID(); err != nil {
		return nil, err
	}

	var (
		main     *reader.Stats
		progress *Progress
		details  *QuoteDetails
		percent  int
	)

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		main, err = a.MainStats(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		progress, err = a.UserProgress(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		details, err = a.DetailedQuoteStats(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		percent = a.ActivityPercent(ctx)
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	ds := &DiaryStats{
		TotalQuotes:     main.TotalQuotes,
		WeeklyQuotes:    progress.WeeklyQuotes,
		MonthlyQuotes:   details.MonthlyQuotes,
		FavoritesCount:  details.FavoritesCount,
		FavoriteAuthor:  progress.FavoriteAuthor,
		ActivityPercent: percent,
	}
	if ds.FavoriteAuthor == "" {
		ds.FavoriteAuthor = fallbackAuthor
	}
	if ds.ActivityPercent == 0 {
		ds.ActivityPercent = fallbackActivityPercent
	}
	return ds, nil
}

// countSince counts quotes created at or after cutoff.
func countSince(quotes []reader.Quote, cutoff time.Time) int {
	count := 0
	for _, q := range quotes {
		if !q.CreatedAt.Before(cutoff) && !q.CreatedAt.IsZero() {
			count++
		}
	}
	return count
}

// topAuthor reduces the author frequency histogram within the window to
// the single most frequent author. Strict > comparison: the first author
// to reach the maximum wins ties.
func topAuthor(quotes []reader.Quote, cutoff time.Time) string {
	counts := make(map[string]int)
	top := ""
	best := 0
	for _, q := range quotes {
		if q.Author == "" || q.CreatedAt.IsZero() || q.CreatedAt.Before(cutoff) {
			continue
		}
		counts[q.Author]++
		if counts[q.Author] > best {
			best = counts[q.Author]
			top = q.Author
		}
	}
	return top
}
