// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime" yaml:"runtime" json:"runtime"`
	Window  WindowConfig  `toml:"window" yaml:"window" json:"window"`
	Session SessionConfig `toml:"session" yaml:"session" json:"session"`
	Storage StorageConfig `toml:"storage" yaml:"storage" json:"storage"`
	Cache   CacheConfig   `toml:"cache" yaml:"cache" json:"cache"`
	Log     LogConfig     `toml:"log" yaml:"log" json:"log"`
	Persist PersistConfig `toml:"persist" yaml:"persist" json:"persist"`
}

// RuntimeConfig configures the local Ollama runtime.
type RuntimeConfig struct {
	// URL is the Ollama API base URL.
	URL string `toml:"url" yaml:"url" json:"url"`

	// DefaultModel is loaded when no model is named.
	DefaultModel string `toml:"default_model" yaml:"default_model" json:"default_model"`

	// KeepAlive is how long Ollama keeps the model resident (e.g. "30m").
	KeepAlive string `toml:"keep_alive" yaml:"keep_alive" json:"keep_alive"`

	// TimeoutSecs bounds each non-streaming request.
	TimeoutSecs int `toml:"timeout_secs" yaml:"timeout_secs" json:"timeout_secs"`
}

// WindowConfig bounds the history replayed per completion.
type WindowConfig struct {
	MaxTurns int `toml:"max_turns" yaml:"max_turns" json:"max_turns"`
}

// SessionConfig holds defaults for new sessions.
type SessionConfig struct {
	DefaultRole string `toml:"default_role" yaml:"default_role" json:"default_role"`
	TitleLength int    `toml:"title_length" yaml:"title_length" json:"title_length"`
}

// StorageConfig selects where session state is persisted.
type StorageConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `toml:"backend" yaml:"backend" json:"backend"`

	// Path is the state directory (file) or database (sqlite). Empty uses
	// the default under the config directory.
	Path string `toml:"path" yaml:"path" json:"path"`

	// Key is the slot the session record is written to.
	Key string `toml:"key" yaml:"key" json:"key"`
}

// CacheConfig selects the artifact cache purged on model removal.
type CacheConfig struct {
	// Backend is "ollama" (the Ollama model store) or "sqlite".
	Backend string `toml:"backend" yaml:"backend" json:"backend"`

	// Path is the sqlite cache database. Empty uses the default.
	Path string `toml:"path" yaml:"path" json:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level" json:"level"`

	// Format is console or json.
	Format string `toml:"format" yaml:"format" json:"format"`

	// File, when set, receives log output instead of stderr.
	File string `toml:"file" yaml:"file" json:"file"`
}

// PersistConfig tunes the persistence bridge.
type PersistConfig struct {
	// ProgressPerSec caps progress-only writes during model loads.
	ProgressPerSec float64 `toml:"progress_per_sec" yaml:"progress_per_sec" json:"progress_per_sec"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			URL:          "http://127.0.0.1:11434",
			DefaultModel: "llama3.2:1b",
			KeepAlive:    "30m",
			TimeoutSecs:  300,
		},
		Window: WindowConfig{
			MaxTurns: 6,
		},
		Session: SessionConfig{
			DefaultRole: "You are a helpful assistant.",
			TitleLength: 40,
		},
		Storage: StorageConfig{
			Backend: "file",
			Key:     "offline_chats_v1",
		},
		Cache: CacheConfig{
			Backend: "ollama",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Persist: PersistConfig{
			ProgressPerSec: 4,
		},
	}
}

// Timeout returns the runtime request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Runtime.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigchat configuration directory path.
// RIGCHAT_HOME overrides the default ~/.rigchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RIGCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StoragePath returns the storage location, resolving the default for the
// configured backend.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == "sqlite" {
		return filepath.Join(dir, "rigchat.db"), nil
	}
	return filepath.Join(dir, "state"), nil
}

// CachePath returns the sqlite cache database location.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, trying TOML then
// YAML and falling back to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathYAML} {
		path, err := pathFn()
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. .yaml and .yml files are read as YAML, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	// Runtime
	if cfg.Runtime.URL == "" {
		cfg.Runtime.URL = defaults.Runtime.URL
	}
	if cfg.Runtime.DefaultModel == "" {
		cfg.Runtime.DefaultModel = defaults.Runtime.DefaultModel
	}
	if cfg.Runtime.KeepAlive == "" {
		cfg.Runtime.KeepAlive = defaults.Runtime.KeepAlive
	}
	if cfg.Runtime.TimeoutSecs == 0 {
		cfg.Runtime.TimeoutSecs = defaults.Runtime.TimeoutSecs
	}

	// Window
	if cfg.Window.MaxTurns == 0 {
		cfg.Window.MaxTurns = defaults.Window.MaxTurns
	}

	// Session
	if cfg.Session.DefaultRole == "" {
		cfg.Session.DefaultRole = defaults.Session.DefaultRole
	}
	if cfg.Session.TitleLength == 0 {
		cfg.Session.TitleLength = defaults.Session.TitleLength
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = defaults.Storage.Key
	}

	// Cache
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaults.Cache.Backend
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	// Persist
	if cfg.Persist.ProgressPerSec == 0 {
		cfg.Persist.ProgressPerSec = defaults.Persist.ProgressPerSec
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigchat configuration file\n")
	buf.WriteString("# Generated by rigchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	errs := validation.Errors{
		"runtime": validation.ValidateStruct(&c.Runtime,
			validation.Field(&c.Runtime.URL, validation.Required, validation.By(validateHTTPURL)),
			validation.Field(&c.Runtime.DefaultModel, validation.Required),
			validation.Field(&c.Runtime.KeepAlive, validation.By(validateKeepAlive)),
			validation.Field(&c.Runtime.TimeoutSecs, validation.Min(1), validation.Max(3600)),
		),
		"window": validation.ValidateStruct(&c.Window,
			validation.Field(&c.Window.MaxTurns, validation.Min(1), validation.Max(100)),
		),
		"session": validation.ValidateStruct(&c.Session,
			validation.Field(&c.Session.TitleLength, validation.Min(1), validation.Max(200)),
		),
		"storage": validation.ValidateStruct(&c.Storage,
			validation.Field(&c.Storage.Backend, validation.In("file", "sqlite")),
			validation.Field(&c.Storage.Key, validation.Required, validation.Length(1, 128)),
		),
		"cache": validation.ValidateStruct(&c.Cache,
			validation.Field(&c.Cache.Backend, validation.In("ollama", "sqlite")),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.Log.Format, validation.In("console", "json")),
		),
		"persist": validation.ValidateStruct(&c.Persist,
			validation.Field(&c.Persist.ProgressPerSec, validation.Min(0.0)),
		),
	}
	return errs.Filter()
}

func validateHTTPURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// validateKeepAlive accepts a Go duration or a plain number of seconds, the
// two forms Ollama understands.
func validateKeepAlive(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err == nil {
		return nil
	}
	if _, err := strconv.Atoi(s); err == nil {
		return nil
	}
	return errors.New("must be a duration such as 30m or a number of seconds")
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGCHAT_OLLAMA_URL: overrides runtime.url
//   - RIGCHAT_MODEL: overrides runtime.default_model
//   - RIGCHAT_KEEP_ALIVE: overrides runtime.keep_alive
//   - RIGCHAT_MAX_TURNS: overrides window.max_turns
//   - RIGCHAT_STORAGE: overrides storage.backend
//   - RIGCHAT_STORAGE_PATH: overrides storage.path
//   - RIGCHAT_CACHE: overrides cache.backend
//   - RIGCHAT_LOG_LEVEL: overrides log.level
//   - RIGCHAT_LOG_FORMAT: overrides log.format
//   - RIGCHAT_LOG_FILE: overrides log.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGCHAT_OLLAMA_URL"); v != "" {
		c.Runtime.URL = v
	}
	if v := os.Getenv("RIGCHAT_MODEL"); v != "" {
		c.Runtime.DefaultModel = v
	}
	if v := os.Getenv("RIGCHAT_KEEP_ALIVE"); v != "" {
		c.Runtime.KeepAlive = v
	}
	if v := os.Getenv("RIGCHAT_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Window.MaxTurns = n
		}
	}
	if v := os.Getenv("RIGCHAT_STORAGE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RIGCHAT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RIGCHAT_CACHE"); v != "" {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RIGCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("RIGCHAT_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("RIGCHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
