// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract between rigchat and the model runtime.
package engine

import (
	"context"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// RUNTIME CONTRACT
// =============================================================================

// Handle identifies the model currently resident in the runtime.
type Handle struct {
	ModelID string
}

// Progress is a single initialization progress report.
type Progress struct {
	Text string

	// Fraction is the completed share in [0,1], or -1 when unknown.
	Fraction float64
}

// Runtime is the model execution service. Only the lifecycle controller
// creates or destroys the resident model; everything else goes through it.
type Runtime interface {
	// Initialize makes modelID resident. Calling it while the same model is
	// already resident returns the existing handle without side effects.
	// Progress reports are sent on progress, which may be nil.
	Initialize(ctx context.Context, modelID string, progress chan<- Progress) (*Handle, error)

	// IsReady reports whether a model is resident and usable.
	IsReady(ctx context.Context) bool

	// Complete runs one non-streaming completion. Failures are *CompletionError.
	Complete(ctx context.Context, messages []model.ChatMessage) (string, error)

	// Unload releases the resident model. Idempotent.
	Unload(ctx context.Context) error

	// ListAvailableModels returns the models the runtime can load.
	ListAvailableModels(ctx context.Context) ([]string, error)
}

// ModelUnloader is implemented by runtimes that can evict a model by id,
// including one made resident by an earlier process.
type ModelUnloader interface {
	UnloadModel(ctx context.Context, modelID string) error
}

// ResidencyChecker is implemented by runtimes that can tell whether a model
// is resident without having loaded it themselves.
type ResidencyChecker interface {
	IsResident(ctx context.Context, modelID string) (bool, error)
}

// SendProgress delivers p on ch unless ch is nil or ctx is done.
func SendProgress(ctx context.Context, ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	case <-ctx.Done():
	}
}
