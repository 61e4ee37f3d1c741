// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Window.MaxTurns)
	assert.Equal(t, 5*time.Minute, cfg.Timeout())
}

func TestLoadFromPath_TOMLFillsDefaults(t *testing.T) {
	t.Setenv("RIGCHAT_MODEL", "")
	path := writeFile(t, "config.toml", `
[runtime]
default_model = "qwen2.5:0.5b"

[window]
max_turns = 10

[storage]
backend = "sqlite"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:0.5b", cfg.Runtime.DefaultModel)
	assert.Equal(t, 10, cfg.Window.MaxTurns)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, Default().Runtime.URL, cfg.Runtime.URL)
	assert.Equal(t, "offline_chats_v1", cfg.Storage.Key)
	assert.Equal(t, 4.0, cfg.Persist.ProgressPerSec)
}

func TestLoadFromPath_YAML(t *testing.T) {
	path := writeFile(t, "rigchat.yaml", `
runtime:
  url: http://gpu-box:11434
  keep_alive: "600"
session:
  default_role: You are a boxing coach.
log:
  level: debug
  format: json
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Runtime.URL)
	assert.Equal(t, "600", cfg.Runtime.KeepAlive)
	assert.Equal(t, "You are a boxing coach.", cfg.Session.DefaultRole)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 40, cfg.Session.TitleLength)
}

func TestLoadFromPath_Errors(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromPath(writeFile(t, "bad.toml", "[runtime\nurl ="))
	assert.Error(t, err)

	_, err = LoadFromPath(writeFile(t, "bad.toml", "[storage]\nbackend = \"redis\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("RIGCHAT_HOME", t.TempDir())
	t.Setenv("RIGCHAT_MODEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PrefersHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RIGCHAT_HOME", home)
	t.Setenv("RIGCHAT_MODEL", "")
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("window:\n  max_turns: 3\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Window.MaxTurns)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RIGCHAT_OLLAMA_URL", "http://10.0.0.2:11434")
	t.Setenv("RIGCHAT_MODEL", "gemma2:2b")
	t.Setenv("RIGCHAT_MAX_TURNS", "12")
	t.Setenv("RIGCHAT_STORAGE", "SQLITE")
	t.Setenv("RIGCHAT_LOG_LEVEL", "Info")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://10.0.0.2:11434", cfg.Runtime.URL)
	assert.Equal(t, "gemma2:2b", cfg.Runtime.DefaultModel)
	assert.Equal(t, 12, cfg.Window.MaxTurns)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	t.Setenv("RIGCHAT_MAX_TURNS", "lots")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 6, cfg.Window.MaxTurns)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url scheme", func(c *Config) { c.Runtime.URL = "ftp://host" }, "runtime"},
		{"url without host", func(c *Config) { c.Runtime.URL = "http://" }, "runtime"},
		{"bad keep alive", func(c *Config) { c.Runtime.KeepAlive = "forever" }, "runtime"},
		{"zero turns", func(c *Config) { c.Window.MaxTurns = -1 }, "window"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "redis" }, "cache"},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }, "log"},
		{"negative rate", func(c *Config) { c.Persist.ProgressPerSec = -1 }, "persist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	t.Setenv("RIGCHAT_MODEL", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Runtime.DefaultModel = "phi3:mini"
	cfg.Cache.Backend = "sqlite"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RIGCHAT_HOME", home)

	cfg := Default()
	p, err := cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "state"), p)

	cfg.Storage.Backend = "sqlite"
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "rigchat.db"), p)

	p, err = cfg.CachePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache.db"), p)
}
