// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the chat sessions and runs message sends.
//
// A Store owns a model.SessionCollection. Every operation is atomic; the
// change callback fires after each mutation, outside the store's lock.
// SendMessage is single-flight per store: a send issued while another is
// waiting on the model is rejected with ErrBusy rather than queued.
//
// # Usage
//
//	store := chat.New(controller, model.SessionCollection{}, chat.DefaultConfig())
//	id := store.CreateSession("You are a boxing coach.")
//	err := store.SendMessage(ctx, "How do I throw a jab?")
package chat
