// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/lifecycle"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
)

// StorageKey is the versioned slot the record lives in. Bump the suffix when
// the record layout changes incompatibly.
const StorageKey = "offline_chats_v1"

// DefaultProgressPerSec caps how often progress-only transitions are written.
const DefaultProgressPerSec = 4

// Record is the persisted layout.
type Record struct {
	ActiveChatID string                        `json:"activeChatId"`
	Chats        map[string]*model.ChatSession `json:"chats"`
	Model        model.ModelState              `json:"model"`
	Busy         bool                          `json:"busy"`
}

// SessionSource is the part of chat.Store the bridge observes.
type SessionSource interface {
	Snapshot() chat.Snapshot
	SetChangeCallback(fn func())
}

// ModelSource is the part of lifecycle.Controller the bridge observes.
type ModelSource interface {
	State() model.ModelState
	SetChangeCallback(fn func(lifecycle.Event))
}

// Config holds bridge settings.
type Config struct {
	// Key overrides StorageKey.
	Key string

	// ProgressPerSec limits progress-only writes; <= 0 writes every one.
	ProgressPerSec float64

	// DefaultRole seeds the fresh session used when nothing can be restored.
	DefaultRole string

	// Logger receives storage warnings. Nil disables logging.
	Logger *zap.Logger
}

// Bridge persists state on every change and restores it on start.
type Bridge struct {
	kv          storage.KV
	key         string
	defaultRole string
	log         *zap.Logger
	limiter     *rate.Limiter

	mu       sync.Mutex
	sessions SessionSource
	models   ModelSource
}

// New creates a bridge over kv.
func New(kv storage.KV, cfg Config) *Bridge {
	if cfg.Key == "" {
		cfg.Key = StorageKey
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = model.DefaultRole
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.ProgressPerSec > 0 {
		limit = rate.Limit(cfg.ProgressPerSec)
	}

	return &Bridge{
		kv:          kv,
		key:         cfg.Key,
		defaultRole: cfg.DefaultRole,
		log:         cfg.Logger.Named("persist"),
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// =============================================================================
// REHYDRATE
// =============================================================================

// Rehydrate reads the stored record. A well-formed record comes back with
// loading and busy cleared and any stored system messages dropped; anything
// else yields one fresh session and an idle model.
func (b *Bridge) Rehydrate() (model.SessionCollection, model.ModelState) {
	fresh := func() (model.SessionCollection, model.ModelState) {
		return model.NewCollection(b.defaultRole), model.ModelState{}
	}

	raw, ok, err := b.kv.Get(b.key)
	if err != nil {
		b.log.Warn("failed to read saved state", zap.String("key", b.key), zap.Error(err))
		return fresh()
	}
	if !ok {
		return fresh()
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		b.log.Warn("saved state is malformed, starting fresh", zap.String("key", b.key), zap.Error(err))
		return fresh()
	}

	coll := model.SessionCollection{ActiveChatID: rec.ActiveChatID, Chats: rec.Chats}
	if !coll.Valid() {
		b.log.Warn("saved state is inconsistent, starting fresh", zap.String("key", b.key))
		return fresh()
	}
	coll.StripSystemMessages()

	state := rec.Model
	state.Loading = false
	return coll, state
}

// =============================================================================
// SAVE
// =============================================================================

// Attach subscribes to both sources and saves after each change.
// Progress-only model transitions are rate-limited.
func (b *Bridge) Attach(sessions SessionSource, models ModelSource) {
	b.mu.Lock()
	b.sessions = sessions
	b.models = models
	b.mu.Unlock()

	sessions.SetChangeCallback(b.Save)
	models.SetChangeCallback(func(ev lifecycle.Event) {
		if ev.Kind == lifecycle.EventProgress && !b.limiter.Allow() {
			return
		}
		b.Save()
	})
}

// Save writes the current state of the attached sources.
func (b *Bridge) Save() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sessions == nil || b.models == nil {
		return
	}

	snap := b.sessions.Snapshot()
	rec := Record{
		ActiveChatID: snap.Sessions.ActiveChatID,
		Chats:        snap.Sessions.Chats,
		Model:        b.models.State(),
		Busy:         snap.Busy,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		b.log.Warn("failed to encode state", zap.Error(err))
		return
	}
	if err := b.kv.Set(b.key, string(data)); err != nil {
		b.log.Warn("failed to save state", zap.String("key", b.key), zap.Error(err))
	}
}
