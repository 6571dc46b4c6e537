package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *ClientConfig)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *ClientConfig) {},
		},
		{
			name:    "empty api url",
			mutate:  func(c *ClientConfig) { c.APIURL = "" },
			wantErr: "invalid api-url",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *ClientConfig) { c.L1GraphQLURL = "ftp://example.com" },
			wantErr: "unsupported scheme",
		},
		{
			name:    "missing host",
			mutate:  func(c *ClientConfig) { c.L2ArchiveURL = "http://" },
			wantErr: "missing host",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *ClientConfig) { c.Timeout = 0 },
			wantErr: "timeout must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCollectConfigValidate(t *testing.T) {
	valid := CollectConfig{Tokens: []string{"mina"}, MaxConcurrency: 2, Interval: time.Second}
	assert.NoError(t, valid.Validate())

	noTokens := valid
	noTokens.Tokens = nil
	assert.ErrorContains(t, noTokens.Validate(), "at least one token")

	noWorkers := valid
	noWorkers.MaxConcurrency = 0
	assert.ErrorContains(t, noWorkers.Validate(), "max concurrency")

	noInterval := valid
	noInterval.Interval = 0
	assert.ErrorContains(t, noInterval.Validate(), "interval")
}

func TestPostgresConfigValidate(t *testing.T) {
	assert.Error(t, PostgresConfig{}.Validate())
	assert.Error(t, PostgresConfig{ConnString: "mysql://x"}.Validate())
	assert.NoError(t, PostgresConfig{ConnString: "postgres://u:p@localhost:5432/doot"}.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOOT_TEST_FROM_FILE=file-value\nDOOT_TEST_PRESET=file-value\n"), 0o600))

	t.Setenv("DOOT_TEST_PRESET", "env-value")
	t.Cleanup(func() { _ = os.Unsetenv("DOOT_TEST_FROM_FILE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "file-value", os.Getenv("DOOT_TEST_FROM_FILE"))
	assert.Equal(t, "env-value", os.Getenv("DOOT_TEST_PRESET"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
