package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reperio.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8190, config.Server.Port)
	assert.Equal(t, "continuations", config.Queue.QueueName)
	assert.Equal(t, 4, config.Queue.Concurrency)
	assert.True(t, config.Janitor.Enabled)
	assert.False(t, config.IsProduction())
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
environment = "production"

[server]
port = 9000

[providers.instagram]
max_attempts = 20
page_size = 25
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 9000, config.Server.Port)
	assert.True(t, config.IsProduction())

	settings, ok := config.Providers["instagram"]
	require.True(t, ok)
	assert.Equal(t, 20, settings.MaxAttempts)
	assert.Equal(t, 25, settings.PageSize)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeConfigFile(t, "[server]\nport = 9000\n")
	second := writeConfigFile(t, "[server]\nport = 9100\n")

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.Port)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	t.Setenv("REPERIO_SERVER_PORT", "9999")
	t.Setenv("REPERIO_APIFY_TOKEN", "tok-env")

	path := writeConfigFile(t, "[server]\nport = 9000\n")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "tok-env", config.Apify.Token)
}

func TestLoadFromFiles_ApifyTokenFallbackEnv(t *testing.T) {
	t.Setenv("APIFY_API_TOKEN", "tok-fallback")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "tok-fallback", config.Apify.Token)
}

func TestLoadFromFiles_RejectsFloorViolations(t *testing.T) {
	t.Run("max_attempts below floor", func(t *testing.T) {
		path := writeConfigFile(t, "[providers.instagram]\nmax_attempts = 1\n")
		_, err := LoadFromFiles(path)
		assert.Error(t, err)
	})

	t.Run("page_size below floor", func(t *testing.T) {
		path := writeConfigFile(t, "[providers.instagram]\npage_size = 5\n")
		_, err := LoadFromFiles(path)
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfigFile(t, "[providers.instagram]\nstep_delay = \"soon\"\n")
		_, err := LoadFromFiles(path)
		assert.Error(t, err)
	})
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/reperio.toml")
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 7777, "0.0.0.0")
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave config untouched.
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, int64(2000), ParseDurationOr("2s", 0).Milliseconds())
	assert.Equal(t, int64(500), ParseDurationOr("", 500000000).Nanoseconds()/1000000)
	assert.Equal(t, int64(500), ParseDurationOr("garbage", 500000000).Nanoseconds()/1000000)
}
