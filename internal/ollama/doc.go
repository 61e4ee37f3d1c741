// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama API and the
// engine.Runtime built on top of it.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Runtime: engine.Runtime that keeps one model resident in Ollama
//   - ModelStore: cachepurge.Cache view of Ollama's local model store
//   - PullReader: reader for the NDJSON progress stream of /api/pull
//
// # Usage
//
// Create a runtime and make a model resident:
//
//	rt := ollama.NewRuntime(ollama.NewClient(), "30m")
//	h, err := rt.Initialize(ctx, "llama3.2:1b", progress)
//	reply, err := rt.Complete(ctx, messages)
//
// Models missing from the local store are pulled during Initialize, with
// download progress forwarded to the progress channel.
package ollama
