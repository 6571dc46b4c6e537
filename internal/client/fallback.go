package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Doot-Foundation/example/internal/models"
)

// GetData tries the API, then L2, then L1, and returns the first success.
// The API step is skipped when no key is configured.
func (c *Client) GetData(ctx context.Context, token string) (*models.ClientResult, error) {
	if _, err := checkToken(token); err != nil {
		return nil, err
	}

	var errs []error

	if c.apiKey != "" {
		res, err := c.GetFromAPI(ctx, token)
		if err == nil {
			return res, nil
		}
		slog.Info("API retrieval failed, falling back to L2", "token", token, "error", err)
		errs = append(errs, fmt.Errorf("api: %w", err))
	} else {
		errs = append(errs, fmt.Errorf("api: %w", ErrInvalidKey))
	}

	res, err := c.GetFromL2(ctx, token)
	if err == nil {
		return res, nil
	}
	slog.Info("L2 retrieval failed, falling back to L1", "token", token, "error", err)
	errs = append(errs, fmt.Errorf("l2: %w", err))

	res, err = c.GetFromL1(ctx, token)
	if err == nil {
		return res, nil
	}
	errs = append(errs, fmt.Errorf("l1: %w", err))

	return nil, fmt.Errorf("all sources failed for %s: %w", token, errors.Join(errs...))
}
