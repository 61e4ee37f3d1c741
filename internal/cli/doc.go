// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigchat command line.
//
// Commands:
//
//	rigchat chat                    Interactive REPL (default)
//	rigchat send <text>             Send one message to the active session
//	rigchat models                  List models the runtime can load
//	rigchat load [model]            Load a model (default model when omitted)
//	rigchat remove <model>          Unload a model and purge its cached artifacts
//	rigchat status                  Show the model and session state
//	rigchat sessions list|new|use|delete|show
//	rigchat setup                   Choose a default model and write the config
//
// Global flags:
//
//	--config <path>   Config file (TOML or YAML)
//	--verbose, -v     Debug logging
//
// Styling and markdown rendering are disabled when stdout is not a terminal.
package cli
