package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, defaultShutdownTimeout, cfg.Shutdown.TimeoutSec)
	assert.Empty(t, cfg.Accounts)
}

func TestLoadConfig_AccountDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
accounts:
  - id: work
    name: Work
    email: me@work.example
    imap_host: imap.work.example
    smtp_host: smtp.work.example
  - id: old
    name: Old
    email: me@old.example
    enabled: false
    update_interval_sec: 60
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 2)

	work := cfg.Accounts[0]
	assert.True(t, work.Enabled)
	assert.Equal(t, "993", work.IMAPPort)
	assert.Equal(t, "465", work.SMTPPort)
	assert.Equal(t, "me@work.example", work.Username)
	assert.Equal(t, defaultUpdateIntervalSec, work.UpdateIntervalSec)

	old := cfg.Accounts[1]
	assert.False(t, old.Enabled)
	assert.Equal(t, 60, old.UpdateIntervalSec)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MODEST_LOG_LEVEL", "warn")
	t.Setenv("MODEST_METRICS_ADDR", "127.0.0.1:9108")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9108", cfg.Metrics.Addr)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.Accounts = []AccountConfig{{ID: "a", Name: "A", Email: "a@example.com", Enabled: true}}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
	assert.Equal(t, "a@example.com", loaded.Accounts[0].Email)
}

func TestAccountConfig_UpdateInterval(t *testing.T) {
	assert.Equal(t, 300.0, AccountConfig{}.UpdateInterval().Seconds())
	assert.Equal(t, 30.0, AccountConfig{UpdateIntervalSec: 30}.UpdateInterval().Seconds())
	assert.Equal(t, "account-x", AccountConfig{ID: "x"}.CredentialKey())
}

func TestLoadConfigWithFlags_ChangedFlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "log:\n  level: warn\nstore:\n  path: /tmp/file.db\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("db", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	cfg, err := LoadConfigWithFlags(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/file.db", cfg.Store.Path, "unchanged flag keeps file value")
}
