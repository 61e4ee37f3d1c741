// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract between rigchat and the model runtime.
package engine

import "context"

// DefaultModel is loaded when no model id is requested.
const DefaultModel = "llama3.2:1b"

// BuiltinCatalog is offered when the runtime cannot list its models.
var BuiltinCatalog = []string{
	"llama3.2:1b",
	"llama3.2:3b",
	"qwen2.5:0.5b",
	"qwen2.5:1.5b",
	"gemma2:2b",
	"phi3.5:3.8b",
}

// Catalog returns the runtime's model list, falling back to BuiltinCatalog
// when the live listing fails or is empty. The returned error is the listing
// failure, if any; the list is usable either way.
func Catalog(ctx context.Context, rt Runtime) ([]string, error) {
	models, err := rt.ListAvailableModels(ctx)
	if err != nil || len(models) == 0 {
		out := make([]string, len(BuiltinCatalog))
		copy(out, BuiltinCatalog)
		return out, err
	}
	return models, nil
}
