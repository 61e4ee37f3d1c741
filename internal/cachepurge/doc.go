// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cachepurge deletes the cached artifacts that belong to a model.
//
// A Cache is an enumerable set of named namespaces, each holding entries
// keyed by URL. Purge walks every namespace and deletes each entry whose URL
// contains the model id (case-insensitive), reporting a RemovalError when
// nothing matched or some deletions failed.
//
// # Key Types
//
//   - Cache: enumerate/delete contract
//   - RemovalError: NotFound, Aggregate and Partial outcomes
//   - SQLiteCache: Cache backed by a SQLite database
//
// # Usage
//
//	res, err := cachepurge.Purge(ctx, cache, "llama3.2:1b")
//	if errors.Is(err, cachepurge.ErrNotFound) {
//	    // nothing cached for this model
//	}
package cachepurge
