// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package window builds the message list submitted to the runtime for one
// completion, bounding how much history is replayed.
//
// A turn is one user message plus its assistant reply. Only the last MaxTurns
// turns of history are sent, preceded by exactly one system message and
// followed by the new user utterance:
//
//	req := window.Build(session.EffectiveRole(), session.Messages, "hi", 6)
//	// [system, ...last 12 history messages..., user "hi"]
package window

import "github.com/jeranaias/rigchat/internal/model"

// DefaultMaxTurns bounds runtime memory and context-window pressure on small
// local models.
const DefaultMaxTurns = 6

// Build assembles the completion request. It never modifies history.
// maxTurns <= 0 uses DefaultMaxTurns.
func Build(role string, history []model.ChatMessage, userText string, maxTurns int) []model.ChatMessage {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	conversation := make([]model.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role != model.RoleSystem {
			conversation = append(conversation, m)
		}
	}

	if limit := 2 * maxTurns; len(conversation) > limit {
		conversation = conversation[len(conversation)-limit:]
	}

	out := make([]model.ChatMessage, 0, len(conversation)+2)
	out = append(out, model.NewSystemMessage(role))
	out = append(out, conversation...)
	out = append(out, model.NewUserMessage(userText))
	return out
}

// MaxLength returns the longest request Build can produce for maxTurns.
func MaxLength(maxTurns int) int {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return 2*maxTurns + 2
}
