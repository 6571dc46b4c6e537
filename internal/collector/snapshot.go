package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Doot-Foundation/example/internal/config"
	"github.com/Doot-Foundation/example/internal/metrics"
	"github.com/Doot-Foundation/example/internal/models"
	"github.com/Doot-Foundation/example/internal/output"
)

// ErrNoPrices is returned when every token of a round failed.
var ErrNoPrices = errors.New("no token could be fetched")

// FetchFunc retrieves one token, e.g. Client.GetData or Client.GetFromAPI.
type FetchFunc func(ctx context.Context, token string) (*models.ClientResult, error)

// Result is the outcome for one token of a round.
type Result struct {
	Token  string
	Record *models.PriceRecord
	Err    error
}

// Collector fetches prices and writes them to an output handler.
type Collector struct {
	fetch    FetchFunc
	handler  output.OutputHandler
	metrics  *metrics.Collector
	progress io.Writer
	now      func() time.Time
}

type Option func(*Collector)

// WithMetrics counts every written record.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Collector) {
		c.metrics = m
	}
}

// WithProgress renders a progress bar on w for multi-token snapshots.
func WithProgress(w io.Writer) Option {
	return func(c *Collector) {
		c.progress = w
	}
}

// WithClock overrides the fetch timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

func New(fetch FetchFunc, handler output.OutputHandler, opts ...Option) *Collector {
	c := &Collector{
		fetch:   fetch,
		handler: handler,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot fetches every token once with at most cfg.MaxConcurrency requests
// in flight. A failed fetch is reported in its Result; a failed write aborts
// the round. Results keep the order of cfg.Tokens.
func (c *Collector) Snapshot(ctx context.Context, cfg config.CollectConfig) ([]Result, error) {
	tokens := cfg.Tokens
	slog.Info("Fetching prices", "tokens", len(tokens), "concurrency", cfg.MaxConcurrency)

	var bar *progressbar.ProgressBar
	if c.progress != nil && len(tokens) > 1 {
		bar = progressbar.NewOptions(
			len(tokens),
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Fetching prices..."),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return nil, fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	results, err := c.processTokens(ctx, tokens, cfg.MaxConcurrency, bar)
	if err != nil {
		return nil, fmt.Errorf("failed to process tokens: %w", err)
	}

	if bar != nil {
		if err := bar.Finish(); err != nil {
			return nil, fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == len(results) {
		return results, ErrNoPrices
	}
	if failed > 0 {
		slog.Warn("Some tokens could not be fetched", "failed", failed, "total", len(results))
	}

	return results, nil
}

// processTokens fetches tokens in parallel using goroutines.
func (c *Collector) processTokens(ctx context.Context, tokens []string, maxConcurrency uint, bar *progressbar.ProgressBar) ([]Result, error) {
	eg, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, max(maxConcurrency, 1))
	results := make([]Result, len(tokens))

	for i, token := range tokens {
		if gctx.Err() != nil {
			break
		}

		sem <- struct{}{}

		i, token := i, token
		eg.Go(func() error {
			defer func() { <-sem }()

			results[i] = c.processToken(gctx, token)
			if err := results[i].Err; err != nil {
				if errors.Is(err, errWrite) {
					return err
				}
				slog.Warn("Token fetch failed", "token", token, "error", err)
			}

			if bar != nil {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("error while fetching prices: %w", err)
	}
	if err := ctx.Err(); err != nil {
		slog.Info("Fetching cancelled")
		return nil, err
	}
	return results, nil
}

var errWrite = errors.New("write failed")

// processToken fetches one token and writes it to the output handler.
func (c *Collector) processToken(ctx context.Context, token string) Result {
	token = models.NormalizeToken(token)

	res, err := c.fetch(ctx, token)
	if err != nil {
		return Result{Token: token, Err: err}
	}

	record := models.NewPriceRecord(res, c.now().UTC())
	if record.Token == "" {
		record.Token = token
	}

	if err := c.handler.WritePrice(ctx, record); err != nil {
		return Result{Token: token, Err: fmt.Errorf("%w: %w", errWrite, err)}
	}
	c.metrics.ObserveWrite()

	return Result{Token: token, Record: record}
}
