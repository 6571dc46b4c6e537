package doot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Doot-Foundation/example/internal/collector"
	"github.com/Doot-Foundation/example/internal/config"
	"github.com/Doot-Foundation/example/internal/models"
)

const defaultInterval = 30 * time.Second

func addCollectFlags(cmd *cobra.Command, defaultTokens []string) {
	cmd.Flags().StringSlice("tokens", defaultTokens, "tokens to fetch")
	cmd.Flags().Uint("max-concurrency", 4, "maximum concurrent retrievals")
	cmd.Flags().String("source", sourceAuto, "retrieval method: auto (API -> L2 -> L1), api, l2 or l1")
}

func loadCollectConfig() (config.CollectConfig, error) {
	cfg := config.LoadCollectConfig()
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	for _, token := range cfg.Tokens {
		if !models.IsSupportedToken(token) {
			return cfg, fmt.Errorf("unsupported token %q, expected one of %s", token, strings.Join(models.SupportedTokens, ", "))
		}
	}
	return cfg, cfg.Validate()
}

func newCollector(cmd *cobra.Command, s *session, progress bool) (*collector.Collector, error) {
	fetch, err := fetchFor(s.client, viper.GetString("source"))
	if err != nil {
		return nil, err
	}
	opts := []collector.Option{collector.WithMetrics(s.metrics)}
	if progress {
		opts = append(opts, collector.WithProgress(cmd.ErrOrStderr()))
	}
	return collector.New(fetch, s.sink(), opts...), nil
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch every token once and write the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				cfg, err := loadCollectConfig()
				if err != nil {
					return fmt.Errorf("invalid snapshot configuration: %w", err)
				}
				c, err := newCollector(cmd, s, true)
				if err != nil {
					return err
				}

				results, err := c.Snapshot(ctx, cfg)
				for _, r := range results {
					if r.Err != nil {
						slog.Warn("Price unavailable", "token", r.Token, "error", r.Err)
					}
				}
				return err
			})
		},
	}
	addCollectFlags(cmd, models.SupportedTokens)
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll token prices until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				cfg, err := loadCollectConfig()
				if err != nil {
					return fmt.Errorf("invalid watch configuration: %w", err)
				}
				c, err := newCollector(cmd, s, false)
				if err != nil {
					return err
				}

				slog.Info("Watching prices", "tokens", cfg.Tokens, "interval", cfg.Interval)
				return c.Watch(ctx, cfg)
			})
		},
	}
	addCollectFlags(cmd, []string{"mina", "ethereum"})
	cmd.Flags().Duration("interval", defaultInterval, "time between polling rounds")
	return cmd
}
