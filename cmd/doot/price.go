package doot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Doot-Foundation/example/internal/collector"
	"github.com/Doot-Foundation/example/internal/demo"
	"github.com/Doot-Foundation/example/internal/models"
)

const sourceAuto = "auto"

// fetchFor maps a --source value to the client method serving it.
func fetchFor(c demo.Client, source string) (collector.FetchFunc, error) {
	switch source {
	case sourceAuto:
		return c.GetData, nil
	case string(models.SourceAPI):
		return c.GetFromAPI, nil
	case string(models.SourceL2):
		return c.GetFromL2, nil
	case string(models.SourceL1):
		return c.GetFromL1, nil
	default:
		return nil, fmt.Errorf("unknown source %q, expected one of auto, api, l2, l1", source)
	}
}

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price <token>",
		Short: "Fetch one token price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				fetch, err := fetchFor(s.demoClient(), viper.GetString("source"))
				if err != nil {
					return err
				}

				res, err := fetch(ctx, args[0])
				if err != nil {
					return err
				}

				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
	cmd.Flags().String("source", sourceAuto, "retrieval method: auto (API -> L2 -> L1), api, l2 or l1")
	return cmd
}
