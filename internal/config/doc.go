// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
//
// Supports TOML and YAML configuration files, with sensible defaults,
// RIGCHAT_* environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - the --config flag
//   - ~/.rigchat/config.toml
//   - ~/.rigchat/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	cfg, err := config.LoadFromPath("rigchat.yaml")
//	err = config.SaveTOML(cfg, path)
package config
