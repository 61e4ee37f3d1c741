// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package enginetest provides an in-memory engine.Runtime for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/jeranaias/rigchat/internal/engine"
	"github.com/jeranaias/rigchat/internal/model"
)

// Runtime is a scriptable engine.Runtime. The zero value is not usable; use New.
type Runtime struct {
	mu sync.Mutex

	bound string
	ready bool

	// Scripted behaviour
	InitErr       error
	CompleteErr   error
	Reply         string
	ListErr       error
	Models        []string
	ProgressSteps []string

	// Block, when non-nil, is received from before Complete returns.
	Block chan struct{}

	// Call counters
	InitCalls     int
	UnloadCalls   int
	CompleteCalls int

	// LastRequest is the message list given to the last Complete call.
	LastRequest []model.ChatMessage

	// UnloadedIDs records the ids passed to UnloadModel.
	UnloadedIDs []string
}

// New creates a fake runtime that replies with "ok".
func New() *Runtime {
	return &Runtime{
		Reply:         "ok",
		ProgressSteps: []string{"Fetching param cache[0/2]", "Fetching param cache[2/2]"},
	}
}

// Initialize implements engine.Runtime.
func (r *Runtime) Initialize(ctx context.Context, modelID string, progress chan<- engine.Progress) (*engine.Handle, error) {
	r.mu.Lock()
	if r.ready && r.bound == modelID {
		r.mu.Unlock()
		return &engine.Handle{ModelID: modelID}, nil
	}
	r.InitCalls++
	steps := append([]string(nil), r.ProgressSteps...)
	initErr := r.InitErr
	r.mu.Unlock()

	for i, step := range steps {
		engine.SendProgress(ctx, progress, engine.Progress{Text: step, Fraction: float64(i+1) / float64(len(steps))})
	}
	if initErr != nil {
		return nil, &engine.InitError{ModelID: modelID, Cause: initErr}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = modelID
	r.ready = true
	return &engine.Handle{ModelID: modelID}, nil
}

// IsReady implements engine.Runtime.
func (r *Runtime) IsReady(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Complete implements engine.Runtime.
func (r *Runtime) Complete(ctx context.Context, messages []model.ChatMessage) (string, error) {
	r.mu.Lock()
	r.CompleteCalls++
	r.LastRequest = append([]model.ChatMessage(nil), messages...)
	block := r.Block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &engine.CompletionError{Kind: engine.CompletionGeneric, Cause: ctx.Err()}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return "", engine.ErrNotLoaded
	}
	if r.CompleteErr != nil {
		return "", r.CompleteErr
	}
	return r.Reply, nil
}

// Unload implements engine.Runtime.
func (r *Runtime) Unload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UnloadCalls++
	r.bound = ""
	r.ready = false
	return nil
}

// UnloadModel implements engine.ModelUnloader. It counts as an unload.
func (r *Runtime) UnloadModel(ctx context.Context, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UnloadCalls++
	r.UnloadedIDs = append(r.UnloadedIDs, modelID)
	if r.bound == modelID {
		r.bound = ""
		r.ready = false
	}
	return nil
}

// IsResident implements engine.ResidencyChecker.
func (r *Runtime) IsResident(ctx context.Context, modelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready && r.bound == modelID, nil
}

// Unloaded returns a copy of the ids passed to UnloadModel.
func (r *Runtime) Unloaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.UnloadedIDs...)
}

// ListAvailableModels implements engine.Runtime.
func (r *Runtime) ListAvailableModels(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	return append([]string(nil), r.Models...), nil
}

// Bound returns the model id currently resident.
func (r *Runtime) Bound() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// LoseDevice simulates the runtime losing its device: the model stays bound
// but is no longer ready.
func (r *Runtime) LoseDevice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
}

// Set applies fn under the runtime's lock, for scripting between calls.
func (r *Runtime) Set(fn func(r *Runtime)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// Counts returns the init, unload and complete call counters.
func (r *Runtime) Counts() (inits, unloads, completes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.InitCalls, r.UnloadCalls, r.CompleteCalls
}

// Request returns a copy of the last completion request.
func (r *Runtime) Request() []model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatMessage(nil), r.LastRequest...)
}
