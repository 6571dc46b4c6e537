package doot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Doot-Foundation/example/internal/client"
	"github.com/Doot-Foundation/example/internal/collector"
	"github.com/Doot-Foundation/example/internal/config"
	"github.com/Doot-Foundation/example/internal/demo"
	"github.com/Doot-Foundation/example/internal/metrics"
	"github.com/Doot-Foundation/example/internal/output"
	"github.com/Doot-Foundation/example/internal/output/postgresql"
)

// session holds what a command needs: the oracle client, metrics and the
// optional PostgreSQL sink.
type session struct {
	cfg     config.ClientConfig
	apiKey  string
	client  *client.Client
	metrics *metrics.Collector
	store   output.OutputHandler
	out     io.Writer
}

func newSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg := config.LoadClientConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	rt := &session{
		cfg:     cfg,
		apiKey:  config.APIKey(),
		metrics: metrics.NewCollector(),
		out:     cmd.OutOrStdout(),
	}
	rt.client = client.NewClient(rt.apiKey, cfg, client.WithMetrics(rt.metrics))

	if viper.GetString("postgres-conn") != "" {
		pgCfg := config.LoadPostgresConfig()
		if err := pgCfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid PostgreSQL configuration: %w", err)
		}
		store, err := postgresql.NewPostgresOutputHandler(ctx, pgCfg.ConnString)
		if err != nil {
			return nil, err
		}
		rt.store = store
	}

	return rt, nil
}

// demoClient is the client the console drivers use. With a PostgreSQL sink
// every successful retrieval is also stored.
func (rt *session) demoClient() demo.Client {
	return rt.wrap(rt.client)
}

func (rt *session) wrap(c *client.Client) demo.Client {
	if rt.store == nil {
		return c
	}
	return collector.NewRecorder(c, rt.store, rt.metrics)
}

// sink is where snapshot and watch write records: PostgreSQL when configured,
// JSON lines on the command output otherwise.
func (rt *session) sink() output.OutputHandler {
	if rt.store != nil {
		return rt.store
	}
	return output.NewJSONOutputHandler(rt.out)
}

func (rt *session) Close() error {
	if rt.store == nil {
		return nil
	}
	return rt.store.Close()
}

// withSession runs fn with a session, serving metrics alongside it when
// --metrics-addr is set. The metrics server stops when fn returns.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, rt *session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	addr := viper.GetString("metrics-addr")
	if addr == "" {
		return fn(ctx, rt)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return rt.metrics.Serve(ctx, addr)
	})
	eg.Go(func() error {
		defer cancel()
		return fn(ctx, rt)
	})

	if err := eg.Wait(); err != nil {
		slog.Debug("Command finished with error", "error", err)
		return err
	}
	return nil
}
