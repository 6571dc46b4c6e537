package client

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Doot-Foundation/example/internal/config"
	"github.com/Doot-Foundation/example/internal/metrics"
	"github.com/Doot-Foundation/example/internal/models"
)

var (
	// ErrInvalidKey is returned when the API rejects the credential.
	ErrInvalidKey = errors.New("invalid API key")
	// ErrUnsupportedToken is returned for tokens the oracle does not serve.
	ErrUnsupportedToken = errors.New("unsupported token")
	// ErrStateSettling is returned while the zkApp offchain state has unsettled actions.
	ErrStateSettling = errors.New("OffchainState still settling, try again after settlement completes")
	// ErrNoPrice is returned when the chain holds no price for the token.
	ErrNoPrice = errors.New("no price recorded on chain")
	// ErrNotConfigured is returned when a chain reader has no contract address.
	ErrNotConfigured = errors.New("contract address is not configured")
)

// Client retrieves signed prices from the Doot oracle.
type Client struct {
	apiKey  string
	cfg     config.ClientConfig
	http    *resty.Client
	metrics *metrics.Collector
	l2      *chainReader
	l1      *chainReader
}

type Option func(*Client)

// WithMetrics reports every retrieval to m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = newResty(resty.NewWithClient(h), c.cfg)
	}
}

// NewClient creates a client for apiKey. An empty key is accepted;
// API retrievals then fail with ErrInvalidKey.
func NewClient(apiKey string, cfg config.ClientConfig, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		cfg:    cfg,
		http:   newResty(resty.New(), cfg),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.l2 = &chainReader{
		network:    "Zeko L2",
		source:     models.SourceL2,
		graphqlURL: cfg.L2GraphQLURL,
		archiveURL: cfg.L2ArchiveURL,
		contract:   cfg.L2Contract,
		setting:    "DOOT_L2_CONTRACT or --l2-contract",
		http:       c.http,
	}
	c.l1 = &chainReader{
		network:    "Mina L1",
		source:     models.SourceL1,
		graphqlURL: cfg.L1GraphQLURL,
		archiveURL: cfg.L1ArchiveURL,
		contract:   cfg.L1Contract,
		setting:    "DOOT_L1_CONTRACT or --l1-contract",
		http:       c.http,
	}

	return c
}

// WithKey returns a client sharing this client's transport and metrics but using apiKey.
func (c *Client) WithKey(apiKey string) *Client {
	clone := *c
	clone.apiKey = apiKey
	return &clone
}

// HasKey reports whether a non-empty credential was supplied.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

func newResty(r *resty.Client, cfg config.ClientConfig) *resty.Client {
	return r.
		SetTimeout(cfg.Timeout).
		SetRetryCount(int(cfg.MaxRetries)).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(10*cfg.RetryWait).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "doot-example/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
}

func (c *Client) observe(source models.Source, token string, start time.Time, err error) {
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(string(source), elapsed, err)
	if err != nil {
		slog.Debug("Retrieval failed", "source", source, "token", token, "elapsed", elapsed, "error", err)
		return
	}
	slog.Debug("Retrieval succeeded", "source", source, "token", token, "elapsed", elapsed)
}

func checkToken(token string) (string, error) {
	if !models.IsSupportedToken(token) {
		return "", &TokenError{Token: token}
	}
	return models.NormalizeToken(token), nil
}

// TokenError reports a token outside models.SupportedTokens.
type TokenError struct {
	Token string
}

func (e *TokenError) Error() string {
	return "unsupported token '" + e.Token + "'"
}

func (e *TokenError) Unwrap() error {
	return ErrUnsupportedToken
}
