// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and the
// resident model state.
//
// # Key Types
//
//   - ChatMessage: A single role/content pair, immutable once appended
//   - ChatSession: One conversation thread with its own role prompt
//   - ModelState: Loading/loaded/progress/error state of the resident model
//   - SessionCollection: All sessions plus the active-session pointer
//
// # Role Locking
//
// A session's role prompt is editable until the first user message is
// appended. At that moment the seed text is frozen into ActiveRoleText and
// the session is locked for the rest of its lifetime:
//
//	s := model.NewSession("You are a boxing coach.")
//	s.RoleSeedText = "You are a chef."  // allowed, not yet locked
//	s.EffectiveRole()                   // "You are a chef."
package model
