package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/Doot-Foundation/example/internal/models"
)

// offchainStateSlot is the zkappState slot holding the settled action state.
const offchainStateSlot = 0

const accountQuery = `query Account($publicKey: PublicKey!) {
  account(publicKey: $publicKey) {
    zkappState
    actionState
  }
}`

const actionsQuery = `query Actions($address: String!) {
  actions(input: {address: $address}) {
    actionState { actionStateOne }
    actionData { accountUpdateId data }
  }
}`

// chainReader reads prices settled in the Doot zkApp on one network.
type chainReader struct {
	network    string
	source     models.Source
	graphqlURL string
	archiveURL string
	contract   string
	setting    string
	http       *resty.Client
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GetFromL2 reads the latest settled price from the Zeko L2 deployment.
func (c *Client) GetFromL2(ctx context.Context, token string) (res *models.ClientResult, err error) {
	start := time.Now()
	defer func() { c.observe(models.SourceL2, token, start, err) }()
	return c.l2.price(ctx, token)
}

// GetFromL1 reads the latest settled price from the Mina L1 deployment.
func (c *Client) GetFromL1(ctx context.Context, token string) (res *models.ClientResult, err error) {
	start := time.Now()
	defer func() { c.observe(models.SourceL1, token, start, err) }()
	return c.l1.price(ctx, token)
}

func (r *chainReader) price(ctx context.Context, token string) (*models.ClientResult, error) {
	token, err := checkToken(token)
	if err != nil {
		return nil, err
	}

	if r.contract == "" {
		return nil, fmt.Errorf("%s: %w, set %s", r.network, ErrNotConfigured, r.setting)
	}

	if err := r.checkSettled(ctx); err != nil {
		return nil, err
	}

	data, err := r.latestAction(ctx, models.TokenIndex(token))
	if err != nil {
		return nil, err
	}
	data.Token = token
	data.Oracle = r.contract

	return &models.ClientResult{Source: r.source, PriceData: *data}, nil
}

// checkSettled compares the committed action state with the latest dispatched one.
func (r *chainReader) checkSettled(ctx context.Context) error {
	body, err := r.query(ctx, r.graphqlURL, accountQuery, map[string]any{"publicKey": r.contract})
	if err != nil {
		return err
	}

	account := gjson.GetBytes(body, "data.account")
	if !account.Exists() || account.Type == gjson.Null {
		return fmt.Errorf("%s: account %s not found", r.network, r.contract)
	}

	settled := account.Get(fmt.Sprintf("zkappState.%d", offchainStateSlot)).String()
	latest := account.Get("actionState.0").String()
	if settled == "" || latest == "" {
		return fmt.Errorf("%s: account %s is not a zkApp", r.network, r.contract)
	}

	if settled != latest {
		return fmt.Errorf("%s: %w", r.network, ErrStateSettling)
	}

	return nil
}

// latestAction returns the last action dispatched for tokenIndex.
// Action data layout: [tokenIndex, price, decimals, timestamp].
func (r *chainReader) latestAction(ctx context.Context, tokenIndex int) (*models.PriceData, error) {
	body, err := r.query(ctx, r.archiveURL, actionsQuery, map[string]any{"address": r.contract})
	if err != nil {
		return nil, err
	}

	want := strconv.Itoa(tokenIndex)
	var found *models.PriceData
	gjson.GetBytes(body, "data.actions").ForEach(func(_, block gjson.Result) bool {
		block.Get("actionData").ForEach(func(_, action gjson.Result) bool {
			fields := action.Get("data").Array()
			if len(fields) < 4 || fields[0].String() != want {
				return true
			}
			found = &models.PriceData{
				Price:                fields[1].String(),
				Decimals:             fields[2].String(),
				AggregationTimestamp: fields[3].String(),
			}
			return true
		})
		return true
	})

	if found == nil {
		return nil, fmt.Errorf("%s: %w", r.network, ErrNoPrice)
	}

	return found, nil
}

func (r *chainReader) query(ctx context.Context, url, query string, vars map[string]any) ([]byte, error) {
	resp, err := r.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(graphqlRequest{Query: query, Variables: vars}).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", r.network, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("%s returned %d", r.network, resp.StatusCode())
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", r.network)
	}

	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		return nil, fmt.Errorf("%s: %s", r.network, msg.String())
	}

	return body, nil
}

func isInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
