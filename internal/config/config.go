package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAPIURL       = "https://doot.foundation/api"
	DefaultL2GraphQLURL = "https://devnet.zeko.io/graphql"
	DefaultL2ArchiveURL = "https://devnet.zeko.io/graphql"
	DefaultL1GraphQLURL = "https://api.minascan.io/node/devnet/v1/graphql"
	DefaultL1ArchiveURL = "https://api.minascan.io/archive/devnet/v1/graphql"
)

// ClientConfig configures the oracle client.
type ClientConfig struct {
	APIURL       string
	L2GraphQLURL string
	L2ArchiveURL string
	L2Contract   string
	L1GraphQLURL string
	L1ArchiveURL string
	L1Contract   string
	Timeout      time.Duration
	MaxRetries   uint
	RetryWait    time.Duration
}

// DefaultClientConfig returns the public Doot endpoints with no contract addresses.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:       DefaultAPIURL,
		L2GraphQLURL: DefaultL2GraphQLURL,
		L2ArchiveURL: DefaultL2ArchiveURL,
		L1GraphQLURL: DefaultL1GraphQLURL,
		L1ArchiveURL: DefaultL1ArchiveURL,
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryWait:    500 * time.Millisecond,
	}
}

func (c ClientConfig) Validate() error {
	for name, u := range map[string]string{
		"api-url":        c.APIURL,
		"l2-graphql-url": c.L2GraphQLURL,
		"l2-archive-url": c.L2ArchiveURL,
		"l1-graphql-url": c.L1GraphQLURL,
		"l1-archive-url": c.L1ArchiveURL,
	} {
		if err := validateURL(u); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// CollectConfig configures the snapshot and watch commands.
type CollectConfig struct {
	Tokens         []string
	MaxConcurrency uint
	Interval       time.Duration
}

func (c CollectConfig) Validate() error {
	if len(c.Tokens) == 0 {
		return fmt.Errorf("at least one token is required")
	}

	if c.MaxConcurrency == 0 {
		return fmt.Errorf("max concurrency must be greater than 0")
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	return nil
}

// PostgresConfig configures the PostgreSQL output handler.
type PostgresConfig struct {
	ConnString string
}

func (c PostgresConfig) Validate() error {
	if c.ConnString == "" {
		return fmt.Errorf("postgres connection string is required")
	}

	if !strings.HasPrefix(c.ConnString, "postgres://") && !strings.HasPrefix(c.ConnString, "postgresql://") {
		return fmt.Errorf("postgres connection string must be a postgres:// URL")
	}

	return nil
}

// LoadClientConfig reads the client settings bound into viper.
func LoadClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:       viper.GetString("api-url"),
		L2GraphQLURL: viper.GetString("l2-graphql-url"),
		L2ArchiveURL: viper.GetString("l2-archive-url"),
		L2Contract:   viper.GetString("l2-contract"),
		L1GraphQLURL: viper.GetString("l1-graphql-url"),
		L1ArchiveURL: viper.GetString("l1-archive-url"),
		L1Contract:   viper.GetString("l1-contract"),
		Timeout:      viper.GetDuration("timeout"),
		MaxRetries:   viper.GetUint("max-retries"),
		RetryWait:    viper.GetDuration("retry-wait"),
	}
}

// LoadCollectConfig reads the snapshot/watch settings bound into viper.
func LoadCollectConfig() CollectConfig {
	return CollectConfig{
		Tokens:         viper.GetStringSlice("tokens"),
		MaxConcurrency: viper.GetUint("max-concurrency"),
		Interval:       viper.GetDuration("interval"),
	}
}

// LoadPostgresConfig reads the PostgreSQL settings bound into viper.
func LoadPostgresConfig() PostgresConfig {
	return PostgresConfig{
		ConnString: viper.GetString("postgres-conn"),
	}
}

// APIKey returns the oracle credential, or "" when none is set.
func APIKey() string {
	return viper.GetString("api-key")
}

// LoadDotEnv copies variables from a dotenv file into the process environment.
// Variables already present in the environment are left untouched.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("missing host")
	}

	return nil
}
