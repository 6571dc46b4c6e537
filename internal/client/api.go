package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Doot-Foundation/example/internal/models"
)

// probeToken is requested by IsKeyValid; it is always served.
const probeToken = "mina"

type apiResponse struct {
	Status  bool             `json:"status"`
	Message string           `json:"message"`
	Data    models.PriceData `json:"data"`
}

// GetFromAPI retrieves the latest signed price from the Doot HTTP API.
func (c *Client) GetFromAPI(ctx context.Context, token string) (res *models.ClientResult, err error) {
	start := time.Now()
	defer func() { c.observe(models.SourceAPI, token, start, err) }()

	token, err = checkToken(token)
	if err != nil {
		return nil, err
	}

	if c.apiKey == "" {
		return nil, ErrInvalidKey
	}

	data, err := c.fetchPrice(ctx, token)
	if err != nil {
		return nil, err
	}

	return &models.ClientResult{Source: models.SourceAPI, PriceData: *data}, nil
}

// IsKeyValid reports whether the API accepts the configured key.
// An empty key is invalid without any network round trip.
func (c *Client) IsKeyValid(ctx context.Context) (bool, error) {
	if c.apiKey == "" {
		return false, nil
	}

	_, err := c.fetchPrice(ctx, probeToken)
	switch {
	case err == nil:
		return true, nil
	case isInvalidKey(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to validate API key: %w", err)
	}
}

func (c *Client) fetchPrice(ctx context.Context, token string) (*models.PriceData, error) {
	var body, failure apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetQueryParam("token", token).
		SetResult(&body).
		SetError(&failure).
		Get(strings.TrimRight(c.cfg.APIURL, "/") + "/get/price")
	if err != nil {
		return nil, fmt.Errorf("Doot API request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidKey
	}

	if resp.IsError() {
		msg := failure.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, fmt.Errorf("doot API returned %d: %s", resp.StatusCode(), msg)
	}

	if !body.Status {
		if body.Message == "" {
			return nil, fmt.Errorf("doot API returned no data for %s", token)
		}
		return nil, fmt.Errorf("doot API: %s", body.Message)
	}

	if body.Data.Price == "" {
		return nil, fmt.Errorf("doot API returned an empty price for %s", token)
	}

	if body.Data.Token == "" {
		body.Data.Token = token
	}

	return &body.Data, nil
}
