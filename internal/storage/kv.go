// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// KEY-VALUE CONTRACT
// =============================================================================

// KV is a durable string slot store. Get reports ok=false for a key that has
// never been written.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	// Backend is "file" or "sqlite".
	Backend string

	// Path is the state directory (file) or database file (sqlite).
	Path string
}

// Open returns the configured backend. The caller closes it when the
// returned value implements io.Closer.
func Open(opts Options) (KV, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileKV(opts.Path)
	case BackendSQLite:
		return NewSQLiteKV(opts.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Close closes kv if it holds resources.
func Close(kv KV) error {
	if c, ok := kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidKey is returned for empty keys or keys that are not safe file names.
// Use errors.Is(err, ErrInvalidKey) to check for this error.
var ErrInvalidKey = &StorageError{Message: "invalid storage key"}

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
	Key     string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// validateKey rejects keys that cannot double as a file name.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\:`) {
		return &StorageError{Message: ErrInvalidKey.Message, Key: key}
	}
	return nil
}
