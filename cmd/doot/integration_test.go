//go:build integration

package doot

import (
	"encoding/json"
	"testing"

	"github.com/gruntwork-io/terratest/modules/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Doot-Foundation/example/internal/models"
)

func runDoot(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()

	return shell.RunCommandAndGetStdOutE(t, shell.Command{
		Command:    "go",
		Args:       append([]string{"run", "../..", "--env-file", t.TempDir() + "/missing.env"}, args...),
		WorkingDir: ".",
		Env:        env,
	})
}

func TestIntegrationPriceFromEnv(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runDoot(t, map[string]string{
		"DOOT_API_KEY": testKey,
		"DOOT_API_URL": srv.URL,
	}, "price", "ethereum", "--source", "api")
	require.NoError(t, err)

	var res models.ClientResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, models.SourceAPI, res.Source)
	assert.Equal(t, "ethereum", res.PriceData.Token)
}

func TestIntegrationTestAPI(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runDoot(t, map[string]string{"DOOT_API_KEY": testKey}, "test-api", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "12.5")
}

func TestIntegrationInvalidKeyExitsNonZero(t *testing.T) {
	srv := newFakeAPI(t)

	_, err := runDoot(t, nil, "price", "mina", "--source", "api", "--api-url", srv.URL, "--api-key", "wrong")
	require.Error(t, err)
}
