package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/readerbot/statskit/internal/config"
	"github.com/readerbot/statskit/internal/slogutil"
)

func init() {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Fetch and print the current reading statistics",
		Long:  `Fetch the diary statistics, progress and top books once and print them as JSON.`,
		RunE:  runStats,
	}

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger := slogutil.Setup(cfg.Log)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "err", err)
		return err
	}
	defer application.close()

	diary, err := application.service.Aggregator().DiaryStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch diary stats: %w", err)
	}

	progress, err := application.service.Aggregator().UserProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch user progress: %w", err)
	}

	out := map[string]any{
		"diary":    diary,
		"progress": progress,
	}

	if books, err := application.client.GetTopBooks(ctx, cfg.Reader.UserID, 5); err != nil {
		logger.Warn("top books unavailable", "err", err)
	} else {
		out["topBooks"] = books
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render stats: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
