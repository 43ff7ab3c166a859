package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hearth/internal/app"
	"hearth/internal/protocol/ratchet"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := app.LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, home, cfg.Home)
	require.Equal(t, uint32(ratchet.DefaultSkipWindow), cfg.SkipWindow)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.DirectoryURL)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	toml := `
directory_url = "http://127.0.0.1:9090"
skip_window = 64
log_level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(home, app.ConfigFileName), []byte(toml), 0o600))

	cfg, err := app.LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9090", cfg.DirectoryURL)
	require.Equal(t, uint32(64), cfg.SkipWindow)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigRejectsMalformed(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, app.ConfigFileName), []byte("skip_window = ["), 0o600))
	_, err := app.LoadConfig(home)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := app.NewLogger(os.Stderr, "TEST", "off")
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = app.NewLogger(os.Stderr, "TEST", "chatty")
	require.Error(t, err)
}
