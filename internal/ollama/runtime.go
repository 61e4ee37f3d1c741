// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"sync"

	"github.com/jeranaias/rigchat/internal/engine"
	"github.com/jeranaias/rigchat/internal/model"
)

// Runtime keeps at most one model resident in a local Ollama server.
// It implements engine.Runtime and is safe for concurrent use.
type Runtime struct {
	client    *Client
	keepAlive string

	mu    sync.Mutex
	bound string
}

var (
	_ engine.Runtime          = (*Runtime)(nil)
	_ engine.ModelUnloader    = (*Runtime)(nil)
	_ engine.ResidencyChecker = (*Runtime)(nil)
)

// NewRuntime creates a runtime on top of client. keepAlive is passed to
// Ollama on every load and completion ("" uses the server default).
func NewRuntime(client *Client, keepAlive string) *Runtime {
	if client == nil {
		client = NewClient()
	}
	return &Runtime{client: client, keepAlive: keepAlive}
}

// Client returns the underlying HTTP client.
func (r *Runtime) Client() *Client {
	return r.client
}

// Bound returns the id of the resident model, or "".
func (r *Runtime) Bound() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Initialize makes modelID resident, pulling it first when the local store
// does not have it.
func (r *Runtime) Initialize(ctx context.Context, modelID string, progress chan<- engine.Progress) (*engine.Handle, error) {
	r.mu.Lock()
	bound := r.bound
	r.mu.Unlock()

	if bound == modelID && r.client.CheckRunning(ctx) == nil {
		return &engine.Handle{ModelID: modelID}, nil
	}

	fail := func(msg string, err error) (*engine.Handle, error) {
		return nil, &engine.InitError{ModelID: modelID, Message: msg, Cause: err}
	}

	engine.SendProgress(ctx, progress, engine.Progress{Text: "Connecting to Ollama", Fraction: 0})
	if err := r.client.CheckRunning(ctx); err != nil {
		return fail("Ollama is not reachable at "+r.client.BaseURL(), err)
	}

	if _, err := r.client.ShowModel(ctx, modelID); err != nil {
		if !IsModelNotFound(err) {
			return fail("", err)
		}
		engine.SendProgress(ctx, progress, engine.Progress{Text: "Downloading " + modelID, Fraction: 0})
		err = r.client.PullModel(ctx, modelID, func(p PullProgress) {
			engine.SendProgress(ctx, progress, engine.Progress{Text: p.Text(), Fraction: p.Fraction()})
		})
		if err != nil {
			return fail("", err)
		}
	}

	// Drop the previous model before making the new one resident.
	if bound != "" && bound != modelID {
		_ = r.client.UnloadModel(ctx, bound)
		r.mu.Lock()
		r.bound = ""
		r.mu.Unlock()
	}

	engine.SendProgress(ctx, progress, engine.Progress{Text: "Loading " + modelID + " into memory", Fraction: -1})
	if err := r.client.LoadModel(ctx, modelID, r.keepAlive); err != nil {
		return fail("", err)
	}

	r.mu.Lock()
	r.bound = modelID
	r.mu.Unlock()

	engine.SendProgress(ctx, progress, engine.Progress{Text: "Ready", Fraction: 1})
	return &engine.Handle{ModelID: modelID}, nil
}

// IsReady reports whether a model is bound and the server answers.
func (r *Runtime) IsReady(ctx context.Context) bool {
	if r.Bound() == "" {
		return false
	}
	return r.client.CheckRunning(ctx) == nil
}

// Complete runs one non-streaming chat completion against the bound model.
func (r *Runtime) Complete(ctx context.Context, messages []model.ChatMessage) (string, error) {
	modelID := r.Bound()
	if modelID == "" {
		return "", engine.ErrNotLoaded
	}

	resp, err := r.client.Chat(ctx, modelID, toMessages(messages), r.keepAlive)
	if err != nil {
		kind := engine.CompletionGeneric
		if IsNotRunning(err) || IsModelNotFound(err) || engine.HasFatalSignature(err.Error()) {
			kind = engine.CompletionFatal
		}
		if kind == engine.CompletionFatal {
			r.mu.Lock()
			r.bound = ""
			r.mu.Unlock()
		}
		return "", &engine.CompletionError{Kind: kind, Cause: err}
	}
	return resp.Message.Content, nil
}

// Unload evicts the bound model from memory. Idempotent.
func (r *Runtime) Unload(ctx context.Context) error {
	r.mu.Lock()
	bound := r.bound
	r.bound = ""
	r.mu.Unlock()

	if bound == "" {
		return nil
	}
	if err := r.client.UnloadModel(ctx, bound); err != nil && !IsModelNotFound(err) {
		return err
	}
	return nil
}

// UnloadModel evicts modelID from server memory whether or not this runtime
// bound it. A model the server does not know is not an error.
func (r *Runtime) UnloadModel(ctx context.Context, modelID string) error {
	r.mu.Lock()
	if r.bound == modelID {
		r.bound = ""
	}
	r.mu.Unlock()

	if err := r.client.UnloadModel(ctx, modelID); err != nil && !IsModelNotFound(err) {
		return err
	}
	return nil
}

// IsResident reports whether the server holds modelID in memory, whoever
// loaded it.
func (r *Runtime) IsResident(ctx context.Context, modelID string) (bool, error) {
	running, err := r.client.ListRunning(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range running {
		if m.Name == modelID {
			return true, nil
		}
	}
	return false, nil
}

// ListAvailableModels returns the names of the models in the local store.
func (r *Runtime) ListAvailableModels(ctx context.Context) ([]string, error) {
	models, err := r.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names, nil
}
