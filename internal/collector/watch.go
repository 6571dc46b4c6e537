package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Doot-Foundation/example/internal/config"
)

// Watch runs a snapshot every cfg.Interval until ctx is cancelled.
// A round where every token fails is logged and retried on the next tick.
func (c *Collector) Watch(ctx context.Context, cfg config.CollectConfig) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		results, err := c.Snapshot(ctx, cfg)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrNoPrices):
			slog.Warn("Round produced no prices", "round", round)
		case err != nil:
			return fmt.Errorf("round %d: %w", round, err)
		default:
			slog.Debug("Round completed", "round", round, "tokens", len(results))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
