// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cachepurge

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCache is an in-memory Cache with injectable failures.
type memCache struct {
	mu         sync.Mutex
	entries    map[string][]string
	listErr    error
	entriesErr map[string]error
	deleteErr  map[string]error
}

func newMemCache(entries map[string][]string) *memCache {
	return &memCache{
		entries:    entries,
		entriesErr: map[string]error{},
		deleteErr:  map[string]error{},
	}
}

func (c *memCache) ListNamespaces(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	var out []string
	for ns := range c.entries {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (c *memCache) ListEntries(ctx context.Context, ns string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.entriesErr[ns]; err != nil {
		return nil, err
	}
	var out []Entry
	for _, u := range c.entries[ns] {
		out = append(out, Entry{URL: u})
	}
	return out, nil
}

func (c *memCache) DeleteEntry(ctx context.Context, ns, url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deleteErr[url]; err != nil {
		return false, err
	}
	kept := c.entries[ns][:0]
	found := false
	for _, u := range c.entries[ns] {
		if u == url {
			found = true
			continue
		}
		kept = append(kept, u)
	}
	c.entries[ns] = kept
	return found, nil
}

func (c *memCache) remaining(ns string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.entries[ns]...)
}

func TestPurge_DeletesMatchingCaseInsensitive(t *testing.T) {
	cache := newMemCache(map[string][]string{
		"weights": {
			"https://hf.co/Llama-3.2-1B/shard-1.bin",
			"https://hf.co/Llama-3.2-1B/shard-2.bin",
			"https://hf.co/Qwen2.5-0.5B/shard-1.bin",
		},
		"config": {
			"https://hf.co/llama-3.2-1b/config.json",
		},
	})

	res, err := Purge(context.Background(), cache, "LLAMA-3.2-1b")
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 3, Deleted: 3}, res)
	assert.Equal(t, []string{"https://hf.co/Qwen2.5-0.5B/shard-1.bin"}, cache.remaining("weights"))
	assert.Empty(t, cache.remaining("config"))
}

func TestPurge_NotFound(t *testing.T) {
	cache := newMemCache(map[string][]string{
		"weights": {"https://hf.co/Qwen2.5-0.5B/shard-1.bin"},
	})

	res, err := Purge(context.Background(), cache, "gemma2:2b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, res.Deleted)

	var re *RemovalError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, RemovalNotFound, re.Kind)
	assert.Contains(t, err.Error(), "gemma2:2b")

	// Nothing was touched.
	assert.Len(t, cache.remaining("weights"), 1)
}

func TestPurge_EmptyCacheIsNotFound(t *testing.T) {
	_, err := Purge(context.Background(), newMemCache(map[string][]string{}), "x")
	assert.True(t, IsNotFound(err))
}

func TestPurge_Aggregate(t *testing.T) {
	cache := newMemCache(map[string][]string{
		"a": {"model-x/1"},
		"b": {"model-x/2"},
	})
	cache.deleteErr["model-x/1"] = errors.New("locked")
	cache.entriesErr["b"] = errors.New("unreadable")

	res, err := Purge(context.Background(), cache, "model-x")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, 0, res.Deleted)

	var re *RemovalError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, RemovalAggregate, re.Kind)
	assert.Len(t, re.Errors(), 2)
}

func TestPurge_Partial(t *testing.T) {
	cache := newMemCache(map[string][]string{
		"a": {"model-x/1", "model-x/2"},
	})
	cache.deleteErr["model-x/2"] = errors.New("locked")

	res, err := Purge(context.Background(), cache, "model-x")
	require.Error(t, err)
	assert.Equal(t, Result{Matched: 2, Deleted: 1}, res)

	var re *RemovalError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, RemovalPartial, re.Kind)
	assert.Equal(t, 1, re.Deleted)
	assert.Equal(t, []string{"model-x/2"}, cache.remaining("a"))
}

func TestPurge_ListNamespacesFailure(t *testing.T) {
	cache := newMemCache(nil)
	cache.listErr = errors.New("quota exceeded")

	_, err := Purge(context.Background(), cache, "x")
	var re *RemovalError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, RemovalAggregate, re.Kind)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestRemovalKind_String(t *testing.T) {
	assert.Equal(t, "not found", RemovalNotFound.String())
	assert.Equal(t, "aggregate", RemovalAggregate.String())
	assert.Equal(t, "partial", RemovalPartial.String())
}

// =============================================================================
// SQLITE CACHE
// =============================================================================

func TestSQLiteCache_Purge(t *testing.T) {
	ctx := context.Background()
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put(ctx, "webllm/model", "https://hf.co/Llama-3.2-1B/params_shard_0.bin", 1024))
	require.NoError(t, cache.Put(ctx, "webllm/model", "https://hf.co/Qwen2.5-0.5B/params_shard_0.bin", 1024))
	require.NoError(t, cache.Put(ctx, "webllm/config", "https://hf.co/Llama-3.2-1B/mlc-chat-config.json", 10))

	namespaces, err := cache.ListNamespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"webllm/config", "webllm/model"}, namespaces)

	res, err := Purge(ctx, cache, "llama-3.2-1b")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)

	namespaces, err = cache.ListNamespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"webllm/model"}, namespaces)

	entries, err := cache.ListEntries(ctx, "webllm/model")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{URL: "https://hf.co/Qwen2.5-0.5B/params_shard_0.bin"}}, entries)

	_, err = Purge(ctx, cache, "llama-3.2-1b")
	assert.True(t, IsNotFound(err))
}

func TestSQLiteCache_DeleteMissing(t *testing.T) {
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	ok, err := cache.DeleteEntry(context.Background(), "ns", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
