// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires configuration, storage, the model runtime and the
// session store into one running rigchat instance.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jeranaias/rigchat/internal/cachepurge"
	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/engine"
	"github.com/jeranaias/rigchat/internal/lifecycle"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/persist"
	"github.com/jeranaias/rigchat/internal/storage"
)

// Options overrides collaborators that New would otherwise build from the
// configuration.
type Options struct {
	// Runtime replaces the Ollama runtime.
	Runtime engine.Runtime

	// Cache replaces the configured artifact cache.
	Cache cachepurge.Cache

	// KV replaces the configured storage backend.
	KV storage.KV

	// Logger replaces the no-op logger.
	Logger *zap.Logger

	// SkipVerify leaves the restored model state unreconciled.
	SkipVerify bool
}

// App is a fully wired rigchat instance.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Runtime    engine.Runtime
	Controller *lifecycle.Controller
	Store      *chat.Store
	Bridge     *persist.Bridge

	kv      storage.KV
	closers []func() error

	mu        sync.Mutex
	listeners map[int]func(lifecycle.Event)
	nextID    int
}

// New builds an App from cfg, restores the last saved state and, unless
// opts.SkipVerify is set, reconciles the restored model state with the
// runtime.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	kv := opts.KV
	if kv == nil {
		path, err := cfg.StoragePath()
		if err != nil {
			return nil, err
		}
		kv, err = storage.Open(storage.Options{Backend: cfg.Storage.Backend, Path: path})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		a.closers = append(a.closers, func() error { return storage.Close(kv) })
	}
	a.kv = kv

	a.Bridge = persist.New(kv, persist.Config{
		Key:            cfg.Storage.Key,
		ProgressPerSec: cfg.Persist.ProgressPerSec,
		DefaultRole:    cfg.Session.DefaultRole,
		Logger:         logger,
	})
	sessions, state := a.Bridge.Rehydrate()

	rt := opts.Runtime
	var client *ollama.Client
	if rt == nil {
		client = ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL: cfg.Runtime.URL,
			Timeout: cfg.Timeout(),
		})
		rt = ollama.NewRuntime(client, cfg.Runtime.KeepAlive)
	}
	a.Runtime = rt

	cache, err := a.openCache(opts.Cache, client)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Controller = lifecycle.New(rt, lifecycle.Config{
		DefaultModel: cfg.Runtime.DefaultModel,
		Cache:        cache,
		Logger:       logger,
	})
	a.Controller.Restore(state)

	a.Store = chat.New(a.Controller, sessions, chat.Config{
		MaxTurns:    cfg.Window.MaxTurns,
		TitleLength: cfg.Session.TitleLength,
		DefaultRole: cfg.Session.DefaultRole,
		Logger:      logger,
	})
	a.Controller.SetChangeCallback(a.notifyModel)
	a.Bridge.Attach(a.Store, modelEvents{a})

	if !opts.SkipVerify {
		a.Controller.VerifyReady(ctx)
	}

	logger.Debug("app ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("model", a.Controller.State().ModelID))
	return a, nil
}

// openCache returns the injected cache or builds the configured one. The
// Ollama model store needs a client and is skipped for injected runtimes.
func (a *App) openCache(injected cachepurge.Cache, client *ollama.Client) (cachepurge.Cache, error) {
	if injected != nil {
		return injected, nil
	}
	switch a.Config.Cache.Backend {
	case "sqlite":
		path, err := a.Config.CachePath()
		if err != nil {
			return nil, err
		}
		c, err := cachepurge.NewSQLiteCache(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		if client == nil {
			return nil, nil
		}
		return ollama.NewModelStore(client), nil
	}
}

// =============================================================================
// MODEL EVENTS
// =============================================================================

// OnModelEvent registers fn for every model transition, alongside the
// persistence bridge. The returned function unregisters it.
func (a *App) OnModelEvent(fn func(lifecycle.Event)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listeners == nil {
		a.listeners = make(map[int]func(lifecycle.Event))
	}
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *App) notifyModel(ev lifecycle.Event) {
	a.mu.Lock()
	fns := make([]func(lifecycle.Event), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// modelEvents lets the bridge subscribe through the app's fan-out.
type modelEvents struct{ a *App }

func (m modelEvents) State() model.ModelState { return m.a.Controller.State() }

func (m modelEvents) SetChangeCallback(fn func(lifecycle.Event)) { m.a.OnModelEvent(fn) }

// Close releases storage and cache handles. The resident model stays loaded
// in the runtime for the next start.
func (a *App) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, a.closers[i]())
	}
	a.closers = nil
	_ = a.Logger.Sync()
	return errs
}
