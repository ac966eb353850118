// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDecodesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duskchand.toml")
	contents := `
listen_addr = "127.0.0.1:4242"
log_level = "debug"
metrics_addr = "127.0.0.1:9100"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4242", cfg.ListenAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	require.Empty(t, cfg.DialAddr)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	require.Equal(t, Default(), cfg)
}

func TestDefaultLogLevel(t *testing.T) {
	require.Equal(t, "info", Default().LogLevel)
}
