// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across rigchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes, TruncateRunesNoEllipsis: UTF-8 safe truncation
//   - TruncateWidth, PadWidth: display-width aware truncation and padding
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file replacement in a private directory
//
// # Usage
//
//	title := util.TruncateRunesNoEllipsis(role, 40)
//	cell := util.PadWidth(util.TruncateWidth(title, 24), 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
