// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key-value slots rigchat persists its
// session state into.
//
// # Key Types
//
//   - KV: Get/Set contract shared by every backend
//   - FileKV: one JSON file per key, written atomically
//   - SQLiteKV: single-table store in a SQLite database
//
// # Usage
//
//	kv, err := storage.Open(storage.Options{Backend: "file", Path: dir})
//	err = kv.Set("offline_chats_v1", payload)
//	value, ok, err := kv.Get("offline_chats_v1")
//
// # Storage Location
//
// By default slots live in ~/.rigchat/state/ (file backend) or
// ~/.rigchat/rigchat.db (sqlite backend).
package storage
