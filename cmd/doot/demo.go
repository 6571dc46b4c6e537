package doot

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Doot-Foundation/example/internal/demo"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through every retrieval method of the oracle client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return demo.RunDemo(ctx, s.demoClient(), s.out, demo.Options{
					APIKeyLoaded: s.apiKey != "",
					IncludeChain: viper.GetBool("with-chain"),
					NewClient: func(apiKey string) demo.Client {
						return s.wrap(s.client.WithKey(apiKey))
					},
				})
			})
		},
	}
	cmd.Flags().Bool("with-chain", false, "also run the Zeko L2 and Mina L1 sections")
	return cmd
}

func newTestAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-api",
		Short: "Smoke-test the API retrieval method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return demo.RunAPITest(ctx, s.demoClient(), s.out)
			})
		},
	}
}

func newTestL2Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-l2",
		Short: "Smoke-test the Zeko L2 retrieval method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return demo.RunL2Test(ctx, s.demoClient(), s.out)
			})
		},
	}
}

func newTestL1Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-l1",
		Short: "Smoke-test the Mina L1 retrieval method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return demo.RunL1Test(ctx, s.demoClient(), s.out)
			})
		},
	}
}

func newInteractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Deploy Swap on a local chain and feed it oracle prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return demo.RunInteract(ctx, s.demoClient(), s.out, demo.InteractOptions{
					ProofsEnabled: viper.GetBool("proofs"),
				})
			})
		},
	}
	cmd.Flags().Bool("proofs", false, "compile the exchange-rate circuit and prove setExchangeRates")
	return cmd
}
