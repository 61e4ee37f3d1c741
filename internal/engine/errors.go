// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract between rigchat and the model runtime.
package engine

import (
	"errors"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// InitError reports a model that failed to become resident.
type InitError struct {
	ModelID string
	Message string
	Cause   error
}

func (e *InitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "failed to load model: " + e.ModelID
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *InitError) Unwrap() error {
	return e.Cause
}

// CompletionKind categorizes completion failures.
type CompletionKind int

const (
	// CompletionGeneric failures leave the resident model usable.
	CompletionGeneric CompletionKind = iota

	// CompletionFatal means the runtime lost its device, context or process;
	// the resident model must be reinitialized before the next completion.
	CompletionFatal
)

// String returns a label for the kind.
func (k CompletionKind) String() string {
	if k == CompletionFatal {
		return "fatal"
	}
	return "generic"
}

// CompletionError reports a failed completion.
type CompletionError struct {
	Kind    CompletionKind
	Message string
	Cause   error
}

func (e *CompletionError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking.
var (
	ErrNotLoaded = &CompletionError{Kind: CompletionFatal, Message: "model not loaded"}
)

// fatalSignatures are substrings runtimes use when the underlying device or
// context has been invalidated.
var fatalSignatures = []string{
	"device was lost",
	"disposed",
	"external instance reference",
	"connection refused",
	"not running",
}

// IsFatal reports whether err means the resident model has been lost.
// Typed CompletionErrors are trusted; anything else is matched against the
// known transport-loss signatures.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *CompletionError
	if errors.As(err, &ce) && ce.Kind == CompletionFatal {
		return true
	}
	return HasFatalSignature(err.Error())
}

// HasFatalSignature reports whether msg contains a transport-loss signature.
func HasFatalSignature(msg string) bool {
	lower := strings.ToLower(msg)
	for _, sig := range fatalSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// IsInitError checks if an error is an initialization failure.
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}
