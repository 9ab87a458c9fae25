package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: info\n"), 0o644))

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, logger, func(cfg *Config) { reloaded <- cfg })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: debug\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.App.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestWatchIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8401\n"), 0o644))

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, logger, func(cfg *Config) { reloaded <- cfg })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("onLoad should not fire for a config that fails validation")
	case <-time.After(500 * time.Millisecond):
	}
}
