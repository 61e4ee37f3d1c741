// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle owns the resident model: loading it, verifying it after
// a restart, removing it and noticing when the runtime has lost it.
//
// The Controller is the only holder of the runtime handle. Everything else
// reads model.ModelState snapshots and asks the Controller for completions.
//
// # States
//
//	idle -> loading -> loaded | error
//	loaded -> loading | idle | error
//
// # Usage
//
//	ctl := lifecycle.New(rt, lifecycle.Config{Cache: cache, Logger: log})
//	ctl.SetChangeCallback(func(ev lifecycle.Event) { ... })
//	if err := ctl.Load(ctx, "llama3.2:1b"); err != nil { ... }
//	reply, err := ctl.Complete(ctx, msgs)
package lifecycle
