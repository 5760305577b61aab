package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/pontebot/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const minimalConfig = `
telegram:
  token: "123456:test-token"
  admin_id: 42
gemini:
  api_key: "test-api-key"
`

func TestLoadAppliesDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := config.Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Logger.JSON)

	assert.Equal(t, "123456:test-token", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)

	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 2, cfg.Gemini.MaxRetries)

	assert.Equal(t, 1200*time.Millisecond, cfg.Relay.FloodInterval)
	assert.Equal(t, 600*time.Millisecond, cfg.Relay.TypingDelay)
	assert.Equal(t, 5*time.Second, cfg.Relay.NoticeTTL)
	assert.Equal(t, 48*time.Hour, cfg.Relay.RecordRetention)
	assert.Equal(t, 500, cfg.Relay.MaxMessageLen)
	assert.Equal(t, "Message sent ✅", cfg.Relay.Messages.Sent)
	assert.NotEmpty(t, cfg.Relay.Messages.Busy)

	assert.Equal(t, "storage.db", cfg.Database.Path)

	require.Contains(t, cfg.Scheduler.Tasks, "relay_prune")
	require.Contains(t, cfg.Scheduler.Tasks, "db_maintenance")
	assert.True(t, cfg.Scheduler.Tasks["relay_prune"].Enabled)
	assert.Equal(t, "17 */6 * * *", cfg.Scheduler.Tasks["relay_prune"].Schedule)

	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := config.Load(writeConfigFile(t, minimalConfig+`
logger:
  level: debug
  json: false
relay:
  flood_interval: 2s
  record_retention: 24h
  messages:
    sent: "delivered"
server:
  enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.False(t, cfg.Logger.JSON)
	assert.Equal(t, 2*time.Second, cfg.Relay.FloodInterval)
	assert.Equal(t, 24*time.Hour, cfg.Relay.RecordRetention)
	assert.Equal(t, "delivered", cfg.Relay.Messages.Sent)
	assert.False(t, cfg.Server.Enabled)

	// Untouched defaults survive a partial override.
	assert.Equal(t, 600*time.Millisecond, cfg.Relay.TypingDelay)
}

func TestLoadMissingFileFailsValidation(t *testing.T) {
	viper.Reset()

	// A missing file is tolerated, but the required fields have no defaults,
	// so validation reports them.
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad log level",
			content: minimalConfig + `
logger:
  level: loud
`,
		},
		{
			name: "flood interval too short",
			content: minimalConfig + `
relay:
  flood_interval: 10ms
`,
		},
		{
			name: "zero admin id",
			content: `
telegram:
  token: "123456:test-token"
  admin_id: 0
gemini:
  api_key: "test-api-key"
`,
		},
		{
			name: "message length over telegram cap",
			content: minimalConfig + `
relay:
  max_message_len: 5000
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()

			_, err := config.Load(writeConfigFile(t, tt.content))
			require.Error(t, err)
		})
	}
}
