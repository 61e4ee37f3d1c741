// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"

	"github.com/jeranaias/rigchat/internal/cachepurge"
)

// ModelNamespace is the single namespace ModelStore exposes.
const ModelNamespace = "ollama-models"

// ModelStore presents Ollama's local model store as a cachepurge.Cache, so
// purging a model id deletes the downloaded model from disk. Entry URLs are
// bare model names.
type ModelStore struct {
	client *Client
}

var _ cachepurge.Cache = (*ModelStore)(nil)

// NewModelStore creates a cache view over client's model store.
func NewModelStore(client *Client) *ModelStore {
	if client == nil {
		client = NewClient()
	}
	return &ModelStore{client: client}
}

// ListNamespaces returns the model namespace once Ollama answers.
func (s *ModelStore) ListNamespaces(ctx context.Context) ([]string, error) {
	if err := s.client.CheckRunning(ctx); err != nil {
		return nil, err
	}
	return []string{ModelNamespace}, nil
}

// ListEntries returns one entry per locally stored model.
func (s *ModelStore) ListEntries(ctx context.Context, namespace string) ([]cachepurge.Entry, error) {
	if namespace != ModelNamespace {
		return nil, nil
	}
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]cachepurge.Entry, 0, len(models))
	for _, m := range models {
		out = append(out, cachepurge.Entry{URL: m.Name})
	}
	return out, nil
}

// DeleteEntry deletes the model named by url. A model that is already gone
// reports (false, nil).
func (s *ModelStore) DeleteEntry(ctx context.Context, namespace, url string) (bool, error) {
	if namespace != ModelNamespace || url == "" {
		return false, nil
	}
	if err := s.client.DeleteModel(ctx, url); err != nil {
		if IsModelNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
