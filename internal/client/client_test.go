package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Doot-Foundation/example/internal/config"
	"github.com/Doot-Foundation/example/internal/metrics"
	"github.com/Doot-Foundation/example/internal/models"
)

const (
	validKey   = "valid-key"
	l2Contract = "B62qL2contract"
	l1Contract = "B62qL1contract"
)

// fakeOracle serves the price API and both GraphQL networks.
type fakeOracle struct {
	server      *httptest.Server
	apiCalls    atomic.Int32
	apiStatus   int
	l1Settling  bool
	l2Failing   bool
	l2Actions   [][]string
	l1Actions   [][]string
	apiMessages map[string]string
	apiRaw      map[string]string
}

func newFakeOracle(t *testing.T) *fakeOracle {
	t.Helper()

	f := &fakeOracle{
		apiStatus: http.StatusOK,
		l2Actions: [][]string{
			{"0", "5000000000", "10", "1700000000"},
			{"2", "30000000000000", "10", "1700000001"},
		},
		l1Actions: [][]string{
			{"0", "4900000000", "10", "1699999000"},
			{"0", "5100000000", "10", "1700000100"},
		},
		apiMessages: map[string]string{},
		apiRaw:      map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/get/price", f.handlePrice)
	mux.HandleFunc("/l2/graphql", f.graphqlHandler(false))
	mux.HandleFunc("/l1/graphql", f.graphqlHandler(true))

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOracle) handlePrice(w http.ResponseWriter, r *http.Request) {
	f.apiCalls.Add(1)
	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("Authorization") != "Bearer "+validKey {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"invalid key"}`))
		return
	}

	token := r.URL.Query().Get("token")
	if raw, ok := f.apiRaw[token]; ok {
		_, _ = w.Write([]byte(raw))
		return
	}
	if msg, ok := f.apiMessages[token]; ok {
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":false,"message":%q}`, msg)))
		return
	}

	if f.apiStatus != http.StatusOK {
		w.WriteHeader(f.apiStatus)
		_, _ = w.Write([]byte(`{"status":false,"message":"upstream unavailable"}`))
		return
	}

	_, _ = w.Write([]byte(fmt.Sprintf(`{"status":true,"message":"ok","data":{"token":%q,"price":"64000.125","decimals":"10","aggregationTimestamp":"1700000000","signature":"7mXsig","oracle":"B62qoracle"}}`, token)))
}

func (f *fakeOracle) graphqlHandler(l1 bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !l1 && f.l2Failing {
			_, _ = w.Write([]byte(`{"errors":[{"message":"node is syncing"}]}`))
			return
		}

		raw, _ := io.ReadAll(r.Body)
		var req graphqlRequest
		_ = json.Unmarshal(raw, &req)

		switch {
		case strings.Contains(req.Query, "account("):
			settled, latest := "111", "111"
			if l1 && f.l1Settling {
				latest = "222"
			}
			_, _ = w.Write([]byte(fmt.Sprintf(`{"data":{"account":{"zkappState":[%q,"0","0","0","0","0","0","0"],"actionState":[%q,"0","0","0","0"]}}}`, settled, latest)))
		case strings.Contains(req.Query, "actions("):
			actions := f.l2Actions
			if l1 {
				actions = f.l1Actions
			}
			data := make([]map[string]any, 0, len(actions))
			for _, a := range actions {
				data = append(data, map[string]any{"accountUpdateId": "1", "data": a})
			}
			resp := map[string]any{"data": map[string]any{"actions": []any{
				map[string]any{"actionState": map[string]any{"actionStateOne": "111"}, "actionData": data},
			}}}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func (f *fakeOracle) config() config.ClientConfig {
	cfg := config.DefaultClientConfig()
	cfg.APIURL = f.server.URL
	cfg.L2GraphQLURL = f.server.URL + "/l2/graphql"
	cfg.L2ArchiveURL = f.server.URL + "/l2/graphql"
	cfg.L2Contract = l2Contract
	cfg.L1GraphQLURL = f.server.URL + "/l1/graphql"
	cfg.L1ArchiveURL = f.server.URL + "/l1/graphql"
	cfg.L1Contract = l1Contract
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 0
	cfg.RetryWait = time.Millisecond
	return cfg
}

func TestGetFromAPI(t *testing.T) {
	f := newFakeOracle(t)
	c := NewClient(validKey, f.config())

	res, err := c.GetFromAPI(context.Background(), "Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, models.SourceAPI, res.Source)
	assert.Equal(t, "bitcoin", res.PriceData.Token)
	assert.Equal(t, "64000.125", res.PriceData.Price)
	assert.Equal(t, "7mXsig", res.PriceData.Signature)
	assert.Equal(t, "B62qoracle", res.PriceData.Oracle)
}

func TestGetFromAPIErrors(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		token   string
		setup   func(f *fakeOracle)
		wantIs  error
		wantErr string
	}{
		{name: "empty key", key: "", token: "mina", wantIs: ErrInvalidKey},
		{name: "rejected key", key: "nope", token: "mina", wantIs: ErrInvalidKey},
		{name: "unsupported token", key: validKey, token: "tether", wantIs: ErrUnsupportedToken},
		{
			name:    "status false",
			key:     validKey,
			token:   "solana",
			setup:   func(f *fakeOracle) { f.apiMessages["solana"] = "price not aggregated yet" },
			wantErr: "price not aggregated yet",
		},
		{
			name:    "server error",
			key:     validKey,
			token:   "mina",
			setup:   func(f *fakeOracle) { f.apiStatus = http.StatusBadGateway },
			wantErr: "returned 502: upstream unavailable",
		},
		{
			name:    "malformed body",
			key:     validKey,
			token:   "ripple",
			setup:   func(f *fakeOracle) { f.apiRaw["ripple"] = `{"status":true,"data":` },
			wantErr: "Doot API request failed",
		},
		{
			name:    "empty price",
			key:     validKey,
			token:   "cardano",
			setup:   func(f *fakeOracle) { f.apiRaw["cardano"] = `{"status":true,"data":{"token":"cardano"}}` },
			wantErr: "empty price for cardano",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeOracle(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			c := NewClient(tc.key, f.config())

			_, err := c.GetFromAPI(context.Background(), tc.token)
			require.Error(t, err)
			if tc.wantIs != nil {
				assert.ErrorIs(t, err, tc.wantIs)
			}
			if tc.wantErr != "" {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestGetFromAPIRetriesServerErrors(t *testing.T) {
	f := newFakeOracle(t)
	f.apiStatus = http.StatusServiceUnavailable
	cfg := f.config()
	cfg.MaxRetries = 2

	_, err := NewClient(validKey, cfg).GetFromAPI(context.Background(), "mina")
	require.Error(t, err)
	assert.Equal(t, int32(3), f.apiCalls.Load())
}

func TestIsKeyValid(t *testing.T) {
	f := newFakeOracle(t)

	valid, err := NewClient(validKey, f.config()).IsKeyValid(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = NewClient("invalid-key-demo", f.config()).IsKeyValid(context.Background())
	require.NoError(t, err)
	assert.False(t, valid)

	calls := f.apiCalls.Load()
	valid, err = NewClient("", f.config()).IsKeyValid(context.Background())
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, calls, f.apiCalls.Load(), "empty key must not hit the network")
}

func TestIsKeyValidTransportFailure(t *testing.T) {
	f := newFakeOracle(t)
	f.apiStatus = http.StatusInternalServerError

	valid, err := NewClient(validKey, f.config()).IsKeyValid(context.Background())
	assert.False(t, valid)
	assert.ErrorContains(t, err, "failed to validate API key")
}

func TestGetFromL2(t *testing.T) {
	f := newFakeOracle(t)
	c := NewClient("", f.config())

	res, err := c.GetFromL2(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, models.SourceL2, res.Source)
	assert.Equal(t, "30000000000000", res.PriceData.Price)
	assert.Equal(t, "1700000001", res.PriceData.AggregationTimestamp)
	assert.Equal(t, l2Contract, res.PriceData.Oracle)
	assert.Empty(t, res.PriceData.Signature)
}

func TestGetFromL1LastActionWins(t *testing.T) {
	f := newFakeOracle(t)
	c := NewClient("", f.config())

	res, err := c.GetFromL1(context.Background(), "mina")
	require.NoError(t, err)
	assert.Equal(t, models.SourceL1, res.Source)
	assert.Equal(t, "5100000000", res.PriceData.Price)
	assert.Equal(t, l1Contract, res.PriceData.Oracle)
}

func TestChainReaderErrors(t *testing.T) {
	t.Run("settling", func(t *testing.T) {
		f := newFakeOracle(t)
		f.l1Settling = true
		_, err := NewClient("", f.config()).GetFromL1(context.Background(), "mina")
		assert.ErrorIs(t, err, ErrStateSettling)
		assert.Contains(t, err.Error(), "OffchainState still settling")
	})

	t.Run("no price", func(t *testing.T) {
		f := newFakeOracle(t)
		_, err := NewClient("", f.config()).GetFromL2(context.Background(), "dogecoin")
		assert.ErrorIs(t, err, ErrNoPrice)
	})

	t.Run("graphql error", func(t *testing.T) {
		f := newFakeOracle(t)
		f.l2Failing = true
		_, err := NewClient("", f.config()).GetFromL2(context.Background(), "mina")
		assert.ErrorContains(t, err, "Zeko L2: node is syncing")
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFakeOracle(t)
		cfg := f.config()
		cfg.L1Contract = ""
		_, err := NewClient("", cfg).GetFromL1(context.Background(), "mina")
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.ErrorContains(t, err, "set DOOT_L1_CONTRACT or --l1-contract")

		cfg.L2Contract = ""
		_, err = NewClient("", cfg).GetFromL2(context.Background(), "mina")
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.ErrorContains(t, err, "set DOOT_L2_CONTRACT or --l2-contract")
	})
}

func TestGetDataFallback(t *testing.T) {
	t.Run("api first", func(t *testing.T) {
		f := newFakeOracle(t)
		res, err := NewClient(validKey, f.config()).GetData(context.Background(), "cardano")
		require.NoError(t, err)
		assert.Equal(t, models.SourceAPI, res.Source)
	})

	t.Run("invalid key falls back to l2", func(t *testing.T) {
		f := newFakeOracle(t)
		res, err := NewClient("invalid-key-demo", f.config()).GetData(context.Background(), "mina")
		require.NoError(t, err)
		assert.Equal(t, models.SourceL2, res.Source)
	})

	t.Run("empty key skips api", func(t *testing.T) {
		f := newFakeOracle(t)
		res, err := NewClient("", f.config()).GetData(context.Background(), "mina")
		require.NoError(t, err)
		assert.Equal(t, models.SourceL2, res.Source)
		assert.Zero(t, f.apiCalls.Load())
	})

	t.Run("l2 down falls back to l1", func(t *testing.T) {
		f := newFakeOracle(t)
		f.l2Failing = true
		res, err := NewClient("", f.config()).GetData(context.Background(), "mina")
		require.NoError(t, err)
		assert.Equal(t, models.SourceL1, res.Source)
	})

	t.Run("everything fails", func(t *testing.T) {
		f := newFakeOracle(t)
		f.l2Failing = true
		f.l1Settling = true
		_, err := NewClient("bad", f.config()).GetData(context.Background(), "polygon")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.ErrorIs(t, err, ErrStateSettling)
		assert.Contains(t, err.Error(), "all sources failed for polygon")
	})

	t.Run("unsupported token short-circuits", func(t *testing.T) {
		f := newFakeOracle(t)
		_, err := NewClient(validKey, f.config()).GetData(context.Background(), "tether")
		assert.ErrorIs(t, err, ErrUnsupportedToken)
		assert.Zero(t, f.apiCalls.Load())
	})
}

func TestWithKeySharesConfig(t *testing.T) {
	f := newFakeOracle(t)
	c := NewClient(validKey, f.config())
	other := c.WithKey("")

	assert.True(t, c.HasKey())
	assert.False(t, other.HasKey())

	res, err := other.GetFromL2(context.Background(), "mina")
	require.NoError(t, err)
	assert.Equal(t, "5000000000", res.PriceData.Price)
}

func TestMetricsRecorded(t *testing.T) {
	f := newFakeOracle(t)
	m := metrics.NewCollector()
	c := NewClient(validKey, f.config(), WithMetrics(m))

	_, _ = c.GetFromAPI(context.Background(), "mina")
	_, _ = c.GetFromAPI(context.Background(), "tether")
	_, _ = c.GetFromL2(context.Background(), "mina")

	count, err := testutil.GatherAndCount(m.Registry(), "doot_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
