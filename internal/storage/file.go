// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/rigchat/internal/util"
)

// FileKV stores each key as <BaseDir>/<key>.json.
type FileKV struct {
	// BaseDir is the directory holding the slot files.
	BaseDir string

	mu sync.Mutex
}

// NewFileKV creates a file store rooted at baseDir, creating it if needed.
// An empty baseDir means ~/.rigchat/state.
func NewFileKV(baseDir string) (*FileKV, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".rigchat", "state")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get reads the slot for key.
func (s *FileKV) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set replaces the slot for key.
func (s *FileKV) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.filePath(key), []byte(value), 0600)
}

// filePath returns the file path for a key.
func (s *FileKV) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}
