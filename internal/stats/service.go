package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/readerbot/statskit/internal/counter"
	"github.com/readerbot/statskit/internal/events"
	"github.com/readerbot/statskit/internal/reader"
	"github.com/readerbot/statskit/internal/statscache"
	"github.com/readerbot/statskit/internal/statestore"
)

// Config wires a Service's collaborators. One Service is constructed per
// application session and passed explicitly to whatever signals quote
// mutations; there are no package-level singletons.
type Config struct {
	API    API
	Cache  *statscache.TTLCache
	Store  statestore.Store
	Bus    *events.Bus
	Users  UserProvider
	Local  *QuoteList
	Logger *slog.Logger

	// TTLs overrides the per-view cache lifetimes; zero fields keep the
	// defaults.
	TTLs TTLs

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service is the statistics engine: it serves the aggregated views, keeps
// the optimistic total consistent through the baseline+delta counter, and
// reacts to quote mutations with invalidate-then-silently-refresh
// sequencing. Handler failures are logged and swallowed; stats are a
// best-effort enhancement, never a blocker for the quote-taking flow.
type Service struct {
	api     API
	agg     *Aggregator
	cache   *statscache.TTLCache
	counter *counter.Counter
	store   statestore.Store
	bus     *events.Bus
	local   *QuoteList
	log     *slog.Logger
	now     func() time.Time

	subscribeOnce sync.Once
	subID         string
	wg            sync.WaitGroup

	mu       sync.Mutex
	snapshot Snapshot
}

// NewService builds a service, seeding the counter baseline from whatever
// snapshot the store already holds so the visible total survives restarts.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "stats-service")

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	local := cfg.Local
	if local == nil {
		local = NewQuoteList()
	}

	var prior Snapshot
	if ok, err := statestore.GetJSON(ctx, cfg.Store, statestore.KeyStats, &prior); err != nil {
		log.WarnContext(ctx, "failed to read prior stats state", "err", err)
	} else if ok {
		log.DebugContext(ctx, "seeding counter from stored snapshot", "total", prior.TotalQuotes)
	}

	s := &Service{
		api:     cfg.API,
		cache:   cfg.Cache,
		counter: counter.New(prior.TotalQuotes),
		store:   cfg.Store,
		bus:     cfg.Bus,
		local:   local,
		log:     log,
		now:     now,
	}
	s.agg = NewAggregator(cfg.API, cfg.Cache, cfg.Users, local, cfg.Logger)
	s.agg.SetTTLs(cfg.TTLs)
	s.snapshot = prior
	s.snapshot.Loading = false

	// Every counter mutation republishes the effective total immediately,
	// before any network round trip.
	s.counter.SetOnChange(func(total int) {
		s.publishCounterState(context.Background())
	})

	return s, nil
}

// Aggregator exposes the read side for direct consumers.
func (s *Service) Aggregator() *Aggregator {
	return s.agg
}

// Snapshot returns a copy of the last published stats state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Subscribe starts consuming quote mutation events from the bus. Safe to
// call more than once; only the first call registers (idempotent guard in
// place of a global registration flag).
func (s *Service) Subscribe() {
	s.subscribeOnce.Do(func() {
		id, ch := s.bus.Subscribe(events.TopicQuotesChanged)
		s.subID = id

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for ev := range ch {
				change, ok := ev.Payload.(events.QuoteChange)
				if !ok {
					s.log.Warn("unexpected payload on quotes topic")
					continue
				}
				s.handleQuoteChange(context.Background(), change)
			}
		}()
	})
}

// Close stops the mutation subscription and waits for the handler loop.
func (s *Service) Close() error {
	if s.subID != "" {
		s.bus.Unsubscribe(s.subID)
		s.wg.Wait()
	}
	return nil
}

// handleQuoteChange drives the optimistic update -> cache invalidation ->
// silent refresh sequence for one mutation. Steps within one mutation are
// strictly ordered; distinct mutations arriving concurrently are not
// mutually serialized beyond the per-key collapse in the cache layer.
func (s *Service) handleQuoteChange(ctx context.Context, change events.QuoteChange) {
	switch change.Type {
	case events.QuoteAdded:
		s.handleAdded(ctx, change)
	case events.QuoteDeleted:
		s.handleDeleted(ctx, change)
	case events.QuoteEdited:
		s.handleEdited(ctx, change)
	default:
		s.log.WarnContext(ctx, "unknown quote change type", "type", change.Type)
	}
}

func (s *Service) handleAdded(ctx context.Context, change events.QuoteChange) {
	if change.Quote != nil {
		s.local.Add(*change.Quote)
	}

	total := s.counter.LocalAdd()
	s.log.DebugContext(ctx, "optimistic add applied", "total", total)

	s.cache.InvalidateAll()
	s.refreshMainStatsSilent(ctx)
	s.refreshDiaryStatsSilent(ctx)
	s.refreshActivityPercentSilent(ctx)
}

func (s *Service) handleDeleted(ctx context.Context, change events.QuoteChange) {
	if change.Reverted {
		// The server rejected an optimistic delete; undo it and republish.
		total := s.counter.RevertDelete()
		s.log.DebugContext(ctx, "optimistic delete reverted", "total", total)
		return
	}

	if change.Optimistic {
		total := s.counter.LocalDelete()
		s.log.DebugContext(ctx, "optimistic delete applied", "total", total)
	}
	// A confirmed delete's delta was already applied by the optimistic
	// event; only the caches and views need refreshing.

	if change.QuoteID != "" {
		s.local.Remove(change.QuoteID)
	}

	s.cache.InvalidateAll()
	s.refreshMainStatsSilent(ctx)
	s.refreshDiaryStatsSilent(ctx)
	s.refreshActivityPercentSilent(ctx)
}

func (s *Service) handleEdited(ctx context.Context, change events.QuoteChange) {
	if change.Quote != nil {
		s.local.Upsert(*change.Quote)
	}

	// Edits do not change the count; recompute the derived stats wholesale
	// from the local list so author/recency/streak reflect the edit
	// immediately.
	progress := s.agg.computeProgress(s.local.Quotes(), s.Snapshot().BackendStreak)
	s.applyProgress(ctx, progress)

	s.cache.InvalidateAll()
	s.refreshMainStatsSilent(ctx)
	s.refreshDiaryStatsSilent(ctx)
}

// RefreshStats is the user-initiated refresh: it toggles the Loading flag
// around the same reconciliation the silent path runs.
func (s *Service) RefreshStats(ctx context.Context) {
	s.setLoading(ctx, true)
	defer s.setLoading(ctx, false)

	s.refreshMainStatsSilent(ctx)
	s.refreshDiaryStatsSilent(ctx)
	s.refreshActivityPercentSilent(ctx)
}

// SilentRefresh re-anchors every view to server truth without touching the
// Loading flag. Used by the mutation handlers and the periodic refresher.
func (s *Service) SilentRefresh(ctx context.Context) {
	s.refreshMainStatsSilent(ctx)
	s.refreshDiaryStatsSilent(ctx)
	s.refreshActivityPercentSilent(ctx)
}

// WarmupInitialStats performs the best-effort initial load. Errors are
// swallowed: the UI starts from the persisted snapshot either way.
func (s *Service) WarmupInitialStats(ctx context.Context) {
	s.SilentRefresh(ctx)
}

// refreshMainStatsSilent fetches main stats and reconciles the counter
// with the server's authoritative total. Failures leave the optimistic
// state in place.
func (s *Service) refreshMainStatsSilent(ctx context.Context) {
	main, err := s.agg.MainStats(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "silent main stats refresh failed", "err", err)
		return
	}

	s.counter.Reconcile(main.TotalQuotes)

	s.mu.Lock()
	cs := s.counter.Snapshot()
	s.snapshot.BaselineTotal = cs.BaselineTotal
	s.snapshot.PendingAdds = cs.PendingAdds
	s.snapshot.PendingDeletes = cs.PendingDeletes
	s.snapshot.TotalQuotes = cs.Effective
	s.snapshot.BackendStreak = main.CurrentStreak
	if main.CurrentStreak > s.snapshot.CurrentStreak {
		s.snapshot.CurrentStreak = main.CurrentStreak
	}
	s.snapshot.LoadedAt = s.now()
	s.snapshot.IsFresh = true
	snap := s.snapshot
	s.mu.Unlock()

	s.persistAndPublish(ctx, snap)
}

// refreshDiaryStatsSilent recomputes the diary view and the progress
// fields of the snapshot.
func (s *Service) refreshDiaryStatsSilent(ctx context.Context) {
	ds, err := s.agg.DiaryStats(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "silent diary stats refresh failed", "err", err)
		return
	}

	// The optimistic counter outranks the server total the diary fetch saw.
	ds.TotalQuotes = s.counter.Effective()

	if err := statestore.SetJSON(ctx, s.store, statestore.KeyDiaryStats, ds); err != nil {
		s.log.WarnContext(ctx, "failed to persist diary stats", "err", err)
	}
	s.bus.Publish(events.TopicDiaryStatsUpdated, *ds)

	if progress, err := s.agg.UserProgress(ctx); err == nil {
		s.applyProgress(ctx, progress)
	}
}

func (s *Service) refreshActivityPercentSilent(ctx context.Context) {
	percent := s.agg.ActivityPercent(ctx)

	s.mu.Lock()
	s.snapshot.ActivityPercent = percent
	snap := s.snapshot
	s.mu.Unlock()

	s.persistAndPublish(ctx, snap)
}

// applyProgress merges a progress view into the snapshot and publishes.
func (s *Service) applyProgress(ctx context.Context, progress *Progress) {
	s.mu.Lock()
	s.snapshot.WeeklyQuotes = progress.WeeklyQuotes
	s.snapshot.FavoriteAuthor = progress.FavoriteAuthor
	s.snapshot.ActivityLevel = progress.ActivityLevel
	s.snapshot.ComputedStreak = progress.ComputedStreak
	s.snapshot.BackendStreak = progress.BackendStreak
	s.snapshot.CurrentStreak = progress.CurrentStreak
	s.snapshot.StreakToYesterday = progress.StreakToYesterday
	s.snapshot.IsAwaitingToday = progress.IsAwaitingToday
	snap := s.snapshot
	s.mu.Unlock()

	s.persistAndPublish(ctx, snap)
}

// publishCounterState pushes the counter's current state into the snapshot
// and publishes, with no network work. This is the immediate optimistic
// publish after every local mutation.
func (s *Service) publishCounterState(ctx context.Context) {
	cs := s.counter.Snapshot()

	s.mu.Lock()
	s.snapshot.BaselineTotal = cs.BaselineTotal
	s.snapshot.PendingAdds = cs.PendingAdds
	s.snapshot.PendingDeletes = cs.PendingDeletes
	s.snapshot.TotalQuotes = cs.Effective
	snap := s.snapshot
	s.mu.Unlock()

	s.persistAndPublish(ctx, snap)
}

func (s *Service) setLoading(ctx context.Context, loading bool) {
	s.mu.Lock()
	s.snapshot.Loading = loading
	snap := s.snapshot
	s.mu.Unlock()

	s.persistAndPublish(ctx, snap)
}

// persistAndPublish writes the snapshot to the state store and broadcasts
// it. Store failures are logged, never surfaced.
func (s *Service) persistAndPublish(ctx context.Context, snap Snapshot) {
	if err := statestore.SetJSON(ctx, s.store, statestore.KeyStats, snap); err != nil {
		s.log.WarnContext(ctx, "failed to persist stats state", "err", err)
	}
	s.bus.Publish(events.TopicStatsUpdated, snap)
}

// ensure the concrete client satisfies the API surface.
var _ API = (*reader.Client)(nil)
