// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract between rigchat and the model runtime
// that performs inference.
//
// # Key Types
//
//   - Runtime: initialize/unload/complete/readiness/catalog operations
//   - Handle: proof that a model is resident, returned by Initialize
//   - Progress: one progress report sent over the caller-owned channel
//   - InitError, CompletionError: typed failures of the runtime
//
// # Progress Reporting
//
// Initialize receives a send-only channel owned by the caller. The runtime
// sends progress while it works and never sends after Initialize returns;
// the caller closes the channel afterwards:
//
//	ch := make(chan engine.Progress, 16)
//	go func() { for p := range ch { fmt.Println(p.Text) } }()
//	h, err := rt.Initialize(ctx, "llama3.2:1b", ch)
//	close(ch)
package engine
