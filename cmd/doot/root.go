package doot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Doot-Foundation/example/internal/config"
)

const envPrefix = "DOOT"

// NewRootCmd builds the doot command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "doot",
		Short:         "Doot oracle client demos and price tools",
		Long:          "Demonstrates the Doot price oracle client (API, Zeko L2 and Mina L1 retrieval with fallback) and a Swap zkApp fed with oracle-signed prices.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	defaults := config.DefaultClientConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringP("logLevel", "l", "info", "set log level (debug|info|warn|error)")
	flags.String("env-file", ".env", "dotenv file to load; existing environment variables win")
	flags.String("api-key", "", "Doot API key (env DOOT_API_KEY)")
	flags.String("api-url", defaults.APIURL, "Doot API base URL")
	flags.String("l2-graphql-url", defaults.L2GraphQLURL, "Zeko L2 GraphQL endpoint")
	flags.String("l2-archive-url", defaults.L2ArchiveURL, "Zeko L2 archive GraphQL endpoint")
	flags.String("l2-contract", "", "Doot contract address on Zeko L2")
	flags.String("l1-graphql-url", defaults.L1GraphQLURL, "Mina L1 GraphQL endpoint")
	flags.String("l1-archive-url", defaults.L1ArchiveURL, "Mina L1 archive GraphQL endpoint")
	flags.String("l1-contract", "", "Doot contract address on Mina L1")
	flags.Duration("timeout", defaults.Timeout, "per-request timeout")
	flags.Uint("max-retries", defaults.MaxRetries, "retries for failed requests")
	flags.Duration("retry-wait", defaults.RetryWait, "initial wait between retries")
	flags.String("postgres-conn", "", "PostgreSQL connection string; every fetched price is stored when set")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address while the command runs")

	rootCmd.AddCommand(
		newDemoCmd(),
		newTestAPICmd(),
		newTestL2Cmd(),
		newTestL1Cmd(),
		newInteractCmd(),
		newPriceCmd(),
		newSnapshotCmd(),
		newWatchCmd(),
	)

	return rootCmd
}

func setup(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return err
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("logLevel"))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", viper.GetString("logLevel"), err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
