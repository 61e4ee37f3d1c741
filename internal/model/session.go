// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and the
// resident model state.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/rigchat/internal/util"
)

const (
	// DefaultRole is the seed role given to sessions created without one.
	DefaultRole = "You are a helpful assistant."

	// DefaultTitle is shown until the session is locked.
	DefaultTitle = "New chat"

	// DefaultTitleLength is the number of characters of the seed role kept as title.
	DefaultTitleLength = 40
)

// =============================================================================
// CHAT SESSION TYPE
// =============================================================================

// ChatSession is one independent conversation thread.
type ChatSession struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`

	// Role prompt. RoleSeedText is editable until RoleLocked; ActiveRoleText is
	// the frozen copy used for inference afterwards.
	RoleSeedText   string `json:"roleSeedText"`
	ActiveRoleText string `json:"activeRoleText"`
	RoleLocked     bool   `json:"roleLocked"`

	// Messages in append order. Never contains a system entry.
	Messages []ChatMessage `json:"messages"`
}

// NewSession creates an unlocked session with the given seed role.
func NewSession(seedRole string) *ChatSession {
	return &ChatSession{
		ID:           uuid.New().String(),
		Title:        DefaultTitle,
		CreatedAt:    time.Now(),
		RoleSeedText: seedRole,
		Messages:     make([]ChatMessage, 0),
	}
}

// EffectiveRole returns the role text inference must use.
func (s *ChatSession) EffectiveRole() string {
	if s.RoleLocked {
		return s.ActiveRoleText
	}
	return s.RoleSeedText
}

// Lock freezes the role prompt and derives the title. It reports false when
// the session was already locked.
func (s *ChatSession) Lock(titleLength int) bool {
	if s.RoleLocked {
		return false
	}
	s.RoleLocked = true
	s.ActiveRoleText = s.RoleSeedText
	if title := DeriveTitle(s.RoleSeedText, titleLength); title != "" {
		s.Title = title
	}
	return true
}

// Append adds a message at the end of the transcript.
func (s *ChatSession) Append(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
}

// Clone returns a deep copy of the session.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]ChatMessage, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// DeriveTitle returns the first maxLen characters of the role text with line
// breaks folded into spaces. Text is NFC-normalized first so combining marks
// are not split from their base character.
func DeriveTitle(role string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTitleLength
	}
	title := norm.NFC.String(role)
	title = strings.ReplaceAll(title, "\r", "")
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.TrimSpace(title)
	return util.TruncateRunesNoEllipsis(title, maxLen)
}
