package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/readerbot/statskit/internal/config"
	"github.com/readerbot/statskit/internal/events"
	"github.com/readerbot/statskit/internal/slogutil"
	"github.com/readerbot/statskit/internal/stats"
)

func init() {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the stats engine until interrupted",
		Long: `Warm up the statistics, start the periodic silent refresh and log every
published snapshot until SIGINT or SIGTERM. SIGHUP reloads the
configuration file and applies the new cache TTLs.`,
		RunE: runWatch,
	}

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger := slogutil.Setup(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting stats watch",
		"base_url", cfg.Reader.BaseURL,
		"state_path", cfg.State.Path,
		"refresh_spec", cfg.Refresh.Spec)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "err", err)
		return err
	}
	defer application.close()

	// Subscribe the snapshot loggers before warming up so the warmup's
	// own snapshots are logged too.
	_, statsCh := application.bus.Subscribe(events.TopicStatsUpdated)
	_, diaryCh := application.bus.Subscribe(events.TopicDiaryStatsUpdated)
	go func() {
		for {
			select {
			case ev, ok := <-statsCh:
				if !ok {
					return
				}
				if snap, ok := ev.Payload.(stats.Snapshot); ok {
					logger.Info("stats updated",
						"total", snap.TotalQuotes,
						"streak", snap.CurrentStreak,
						"weekly", snap.WeeklyQuotes,
						"fresh", snap.IsFresh,
						"loading", snap.Loading)
				}
			case ev, ok := <-diaryCh:
				if !ok {
					return
				}
				if ds, ok := ev.Payload.(stats.DiaryStats); ok {
					logger.Info("diary stats updated",
						"total", ds.TotalQuotes,
						"monthly", ds.MonthlyQuotes,
						"favorites", ds.FavoritesCount)
				}
			}
		}
	}()

	application.service.Subscribe()
	application.service.WarmupInitialStats(ctx)

	manager := config.NewManager(cfg, config.GetConfigFilePath())
	manager.OnConfigChange(func(oldCfg, newCfg *config.Config) {
		application.service.Aggregator().SetTTLs(stats.TTLs{
			Short:    newCfg.Cache.ShortTTL,
			Default:  newCfg.Cache.DefaultTTL,
			Progress: newCfg.Cache.ProgressTTL,
		})
		logger.Info("configuration reloaded",
			"short_ttl", newCfg.Cache.ShortTTL,
			"default_ttl", newCfg.Cache.DefaultTTL,
			"progress_ttl", newCfg.Cache.ProgressTTL)
	})

	var refresher *stats.Refresher
	if cfg.Refresh.Enabled == nil || *cfg.Refresh.Enabled {
		refresher = stats.NewRefresher(application.service, cfg.Refresh.Spec, logger)
		if err := refresher.Start(); err != nil {
			logger.Error("failed to start refresher", "err", err)
			return err
		}
	} else {
		logger.Info("periodic refresh is disabled in configuration")
	}

	// Set up signal handling: SIGHUP reloads the configuration, SIGINT
	// and SIGTERM shut down gracefully.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	hupChan := make(chan os.Signal, 1)
	signal.Notify(hupChan, syscall.SIGHUP)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sigChan:
			break loop
		case <-hupChan:
			if err := manager.ReloadConfig(); err != nil {
				logger.Error("config reload failed, keeping previous configuration", "err", err)
			}
		}
	}

	if refresher != nil {
		refresher.Stop()
		logger.Info("refresher stopped")
	}

	logger.Info("stats watch shutting down gracefully")
	return nil
}
