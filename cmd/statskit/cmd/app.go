package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/readerbot/statskit/internal/config"
	"github.com/readerbot/statskit/internal/events"
	"github.com/readerbot/statskit/internal/reader"
	"github.com/readerbot/statskit/internal/statscache"
	"github.com/readerbot/statskit/internal/statestore"
	"github.com/readerbot/statskit/internal/stats"
)

// configUser resolves the current user from configuration.
type configUser struct {
	id string
}

func (u configUser) CurrentUserID() string { return u.id }

// app bundles the wired components a command needs.
type app struct {
	cfg     *config.Config
	client  *reader.Client
	cache   *statscache.TTLCache
	store   statestore.Store
	bus     *events.Bus
	service *stats.Service
	log     *slog.Logger
}

// buildApp wires the full stack from a loaded configuration.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	client := reader.NewClient(cfg.Reader.BaseURL, cfg.Reader.APIKey,
		reader.WithTimeout(cfg.Reader.Timeout))

	cache, err := statscache.New(statscache.Config{MaxEntries: cfg.Cache.MaxEntries})
	if err != nil {
		return nil, fmt.Errorf("failed to create stats cache: %w", err)
	}

	var store statestore.Store
	if cfg.State.Path != "" {
		sqlStore, err := statestore.NewSQLiteStore(cfg.State.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		store = sqlStore
	} else {
		store = statestore.NewMemoryStore()
	}

	bus := events.NewBus()

	service, err := stats.NewService(ctx, stats.Config{
		API:    client,
		Cache:  cache,
		Store:  store,
		Bus:    bus,
		Users:  configUser{id: cfg.Reader.UserID},
		Logger: logger,
		TTLs: stats.TTLs{
			Short:    cfg.Cache.ShortTTL,
			Default:  cfg.Cache.DefaultTTL,
			Progress: cfg.Cache.ProgressTTL,
		},
	})
	if err != nil {
		closeStore(store, logger)
		return nil, fmt.Errorf("failed to create stats service: %w", err)
	}

	return &app{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		store:   store,
		bus:     bus,
		service: service,
		log:     logger,
	}, nil
}

func (a *app) close() {
	_ = a.service.Close()
	_ = a.bus.Close()
	closeStore(a.store, a.log)
}

func closeStore(store statestore.Store, logger *slog.Logger) {
	if c, ok := store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logger.Error("failed to close state store", "err", err)
		}
	}
}
