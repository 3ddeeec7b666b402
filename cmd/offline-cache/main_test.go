package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVerbosityFlags(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	root := newRootCommand()
	require.NotNil(t, root.PersistentFlags().ShorthandLookup("v"))
	require.NotNil(t, root.PersistentFlags().Lookup("vv"))

	cmd := &cobra.Command{}
	cmd.SetErr(io.Discard)
	for _, tt := range []struct {
		opts  options
		level zerolog.Level
	}{
		{options{}, zerolog.InfoLevel},
		{options{verbosityInfo: true}, zerolog.DebugLevel},
		{options{verbosityTrace: true}, zerolog.TraceLevel},
	} {
		require.NoError(t, setupLogging(cmd, &tt.opts))
		assert.Equal(t, tt.level, log.Logger.GetLevel())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "cache.db", config.DB)
	assert.Equal(t, "habit-cache-v1", config.Store)
	assert.Equal(t, []string{"/"}, config.Seeds)
	assert.Zero(t, config.NetworkTimeout)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
origin: http://localhost:8000
port: 9000
store: habit-cache-v2
seeds:
  - /
  - /accounts/signup/
networkTimeout: 3s
`), 0644))
	t.Setenv("OFFLINE_CACHE_PORT", "9100")
	t.Setenv("OFFLINE_CACHE_DB", "memory")

	config, err := loadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", config.Origin)
	assert.Equal(t, 9100, config.Port)
	assert.Equal(t, "habit-cache-v2", config.Store)
	assert.Equal(t, []string{"/", "/accounts/signup/"}, config.Seeds)
	assert.Equal(t, 3*time.Second, config.NetworkTimeout)
	assert.Equal(t, "", config.dbFilename())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInstallAndStores(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Habits"))
	}))
	defer origin.Close()
	db := filepath.Join(t.TempDir(), "cache.db")

	out, err := run(t, "install", "--origin", origin.URL, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "installed habit-cache-v1 (installed)")

	out, err = run(t, "install", "--origin", origin.URL, "--db", db, "--store", "habit-cache-v2")
	require.NoError(t, err)
	assert.Contains(t, out, "installed habit-cache-v2")

	out, err = run(t, "stores", "--db", db, "--store", "habit-cache-v2")
	require.NoError(t, err)
	assert.Equal(t, "  habit-cache-v1\n* habit-cache-v2\n", out)

	out, err = run(t, "stores", "keys", "habit-cache-v1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, ":GET:/")

	out, err = run(t, "stores", "delete", "habit-cache-v1", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "deleted habit-cache-v1\n", out)

	_, err = run(t, "stores", "delete", "habit-cache-v1", "--db", db)
	assert.Error(t, err)
	_, err = run(t, "stores", "keys", "habit-cache-v1", "--db", db)
	assert.Error(t, err)
}

func TestInstallFailsWithoutOrigin(t *testing.T) {
	_, err := run(t, "install", "--db", "memory")
	assert.ErrorContains(t, err, "origin")
}

func TestInstallFailsOnSeedError(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer origin.Close()

	_, err := run(t, "install", "--origin", origin.URL, "--db", "memory")
	assert.ErrorContains(t, err, "status 503")
}
