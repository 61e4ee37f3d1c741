// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persist mirrors session and model state into a storage.KV slot and
// restores it on start.
//
// The whole state is one JSON record under StorageKey:
//
//	{"activeChatId": "...", "chats": {...}, "model": {...}, "busy": false}
//
// Storage failures are logged and swallowed; a missing or unreadable record
// yields one fresh session and an idle model.
package persist
