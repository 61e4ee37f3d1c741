// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and the
// resident model state.
package model

import "sort"

// =============================================================================
// MODEL STATE
// =============================================================================

// ModelState describes the resident model as seen by the rendering layer.
// Loading and Loaded are never both true.
type ModelState struct {
	Loading  bool   `json:"loading"`
	Loaded   bool   `json:"loaded"`
	Progress string `json:"progress"`
	ModelID  string `json:"modelId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Phase returns a short label for the state: idle, loading, loaded or error.
func (m ModelState) Phase() string {
	switch {
	case m.Loading:
		return "loading"
	case m.Loaded:
		return "loaded"
	case m.Error != "":
		return "error"
	default:
		return "idle"
	}
}

// =============================================================================
// SESSION COLLECTION
// =============================================================================

// SessionCollection holds every chat session and the active-session pointer.
type SessionCollection struct {
	ActiveChatID string                  `json:"activeChatId"`
	Chats        map[string]*ChatSession `json:"chats"`
}

// NewCollection creates a collection holding a single fresh session.
func NewCollection(seedRole string) SessionCollection {
	s := NewSession(seedRole)
	return SessionCollection{
		ActiveChatID: s.ID,
		Chats:        map[string]*ChatSession{s.ID: s},
	}
}

// IDs returns the session ids in iteration order: oldest first, ties by id.
func (c SessionCollection) IDs() []string {
	ids := make([]string, 0, len(c.Chats))
	for id := range c.Chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.Chats[ids[i]], c.Chats[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Active returns the active session, or nil when the pointer is dangling.
func (c SessionCollection) Active() *ChatSession {
	return c.Chats[c.ActiveChatID]
}

// Valid reports whether the collection is non-empty, the active pointer names
// an existing session and every message carries a known role.
func (c SessionCollection) Valid() bool {
	if len(c.Chats) == 0 {
		return false
	}
	if _, ok := c.Chats[c.ActiveChatID]; !ok {
		return false
	}
	for id, s := range c.Chats {
		if s == nil || s.ID != id {
			return false
		}
		for _, m := range s.Messages {
			if !m.Role.Valid() {
				return false
			}
		}
	}
	return true
}

// StripSystemMessages removes any stored system entries. They are only ever
// synthesized at request-build time.
func (c SessionCollection) StripSystemMessages() {
	for _, s := range c.Chats {
		kept := s.Messages[:0]
		for _, m := range s.Messages {
			if m.Role != RoleSystem {
				kept = append(kept, m)
			}
		}
		s.Messages = kept
	}
}

// Clone returns a deep copy of the collection.
func (c SessionCollection) Clone() SessionCollection {
	out := SessionCollection{
		ActiveChatID: c.ActiveChatID,
		Chats:        make(map[string]*ChatSession, len(c.Chats)),
	}
	for id, s := range c.Chats {
		out.Chats[id] = s.Clone()
	}
	return out
}
