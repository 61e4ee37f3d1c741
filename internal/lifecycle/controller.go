// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/rigchat/internal/cachepurge"
	"github.com/jeranaias/rigchat/internal/engine"
	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind distinguishes progress-only updates from other transitions.
type EventKind int

const (
	// EventState is any transition other than a progress text update.
	EventState EventKind = iota

	// EventProgress only changed ModelState.Progress.
	EventProgress
)

// Event is delivered to the change callback after every transition.
type Event struct {
	Kind  EventKind
	State model.ModelState
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrLoadInProgress rejects a Load or Remove issued while another load or
	// removal runs.
	ErrLoadInProgress = errors.New("a model load or removal is already in progress")

	// ErrNoModelID rejects a Remove without a model id.
	ErrNoModelID = errors.New("model id is required")
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Config holds the controller's collaborators and defaults.
type Config struct {
	// DefaultModel is loaded when Load is given an empty id.
	DefaultModel string

	// Cache is purged by Remove. Nil means there is nothing to purge.
	Cache cachepurge.Cache

	// Logger receives warnings for swallowed failures. Nil disables logging.
	Logger *zap.Logger
}

// Controller drives the resident model's lifecycle. It is safe for
// concurrent use.
type Controller struct {
	rt           engine.Runtime
	cache        cachepurge.Cache
	log          *zap.Logger
	defaultModel string

	mu       sync.Mutex
	state    model.ModelState
	handle   *engine.Handle
	inFlight bool
	verified bool
	onChange func(Event)
}

// New creates a controller for rt in the idle state.
func New(rt engine.Runtime, cfg Config) *Controller {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = engine.DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		rt:           rt,
		cache:        cfg.Cache,
		log:          cfg.Logger.Named("lifecycle"),
		defaultModel: cfg.DefaultModel,
	}
}

// Restore seeds the state from a persisted snapshot. Loading is always
// cleared; VerifyReady reconciles Loaded with the runtime.
func (c *Controller) Restore(state model.ModelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state.Loading = false
	c.state = state
}

// State returns a snapshot of the model state.
func (c *Controller) State() model.ModelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DefaultModel returns the model loaded for an empty id.
func (c *Controller) DefaultModel() string {
	return c.defaultModel
}

// SetChangeCallback sets the function called after every transition. It is
// invoked outside the controller's lock.
func (c *Controller) SetChangeCallback(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// =============================================================================
// LOAD
// =============================================================================

// Load makes modelID resident, or the default model when modelID is empty.
// Failures are recorded in the state and returned as *engine.InitError.
// Load does not retry.
func (c *Controller) Load(ctx context.Context, modelID string) error {
	if modelID == "" {
		modelID = c.defaultModel
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrLoadInProgress
	}
	c.inFlight = true
	prev := c.handle
	restored := c.state
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	log := c.log.With(zap.String("model", modelID))

	// Fast path: already resident.
	if prev != nil && prev.ModelID == modelID && c.rt.IsReady(ctx) {
		c.update(EventState, func(s *model.ModelState) {
			s.Loading = false
			s.Loaded = true
			s.ModelID = modelID
			s.Error = ""
		})
		return nil
	}

	c.update(EventState, func(s *model.ModelState) {
		s.Loading = true
		s.Loaded = false
		s.Error = ""
		s.Progress = ""
	})

	if prev != nil && prev.ModelID != modelID {
		if err := c.rt.Unload(ctx); err != nil {
			log.Warn("unload of previous model failed", zap.String("previous", prev.ModelID), zap.Error(err))
		}
		c.mu.Lock()
		c.handle = nil
		c.mu.Unlock()
	}

	// A model remembered from an earlier process has no handle here but may
	// still be resident on the server.
	if prev == nil && restored.Loaded && restored.ModelID != "" && restored.ModelID != modelID {
		c.unloadRestored(ctx, restored.ModelID)
	}

	progress := make(chan engine.Progress)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range progress {
			c.update(EventProgress, func(s *model.ModelState) {
				s.Progress = p.Text
			})
		}
	}()

	h, err := c.rt.Initialize(ctx, modelID, progress)
	close(progress)
	<-drained

	if err != nil {
		var ie *engine.InitError
		if !errors.As(err, &ie) {
			err = &engine.InitError{ModelID: modelID, Cause: err}
		}
		c.update(EventState, func(s *model.ModelState) {
			s.Loading = false
			s.Loaded = false
			s.Error = err.Error()
		})
		log.Error("model load failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()

	c.update(EventState, func(s *model.ModelState) {
		s.Loading = false
		s.Loaded = true
		s.ModelID = h.ModelID
		s.Error = ""
	})
	log.Info("model loaded")
	return nil
}

func (c *Controller) unloadRestored(ctx context.Context, modelID string) {
	var err error
	if u, ok := c.rt.(engine.ModelUnloader); ok {
		err = u.UnloadModel(ctx, modelID)
	} else {
		err = c.rt.Unload(ctx)
	}
	if err != nil {
		c.log.Warn("unload of restored model failed", zap.String("previous", modelID), zap.Error(err))
	}
}

// =============================================================================
// VERIFY / ENSURE READY
// =============================================================================

// VerifyReady reconciles a restored "loaded" state with the runtime, once per
// controller. When the runtime no longer holds the model it is reloaded with
// the remembered id; if that fails the state is demoted to not loaded without
// recording an error.
func (c *Controller) VerifyReady(ctx context.Context) {
	c.mu.Lock()
	if c.verified {
		c.mu.Unlock()
		return
	}
	c.verified = true
	st := c.state
	h := c.handle
	c.mu.Unlock()

	if !st.Loaded {
		return
	}
	if h != nil && c.rt.IsReady(ctx) {
		return
	}

	err := c.Load(ctx, st.ModelID)
	if err == nil || errors.Is(err, ErrLoadInProgress) {
		return
	}
	c.update(EventState, func(s *model.ModelState) {
		s.Loading = false
		s.Loaded = false
		s.Error = ""
	})
	c.log.Warn("restored model could not be reloaded", zap.String("model", st.ModelID), zap.Error(err))
}

// EnsureReady reports whether the model is loaded and the runtime is ready.
// A loaded state whose runtime is not ready is demoted to not loaded.
func (c *Controller) EnsureReady(ctx context.Context) bool {
	c.mu.Lock()
	st := c.state
	h := c.handle
	c.mu.Unlock()

	if !st.Loaded {
		return false
	}
	if h != nil && c.rt.IsReady(ctx) {
		return true
	}

	c.update(EventState, func(s *model.ModelState) {
		s.Loaded = false
	})
	c.log.Warn("runtime not ready, model demoted", zap.String("model", st.ModelID))
	return false
}

// Reconcile checks a "loaded" state against the runtime without loading
// anything, demoting it when the model is no longer resident, and returns the
// resulting state. A model resident from an earlier process counts as loaded.
func (c *Controller) Reconcile(ctx context.Context) model.ModelState {
	c.mu.Lock()
	st := c.state
	h := c.handle
	c.mu.Unlock()

	if !st.Loaded {
		return st
	}
	if h != nil && c.rt.IsReady(ctx) {
		return st
	}
	if rc, ok := c.rt.(engine.ResidencyChecker); ok {
		resident, err := rc.IsResident(ctx, st.ModelID)
		if err == nil && resident {
			return st
		}
		if err != nil {
			c.log.Debug("residency check failed", zap.String("model", st.ModelID), zap.Error(err))
		}
	}

	c.update(EventState, func(s *model.ModelState) {
		s.Loaded = false
	})
	c.log.Info("remembered model is not resident", zap.String("model", st.ModelID))
	return c.State()
}

// =============================================================================
// COMPLETE
// =============================================================================

// Complete runs one completion on the resident model. A fatal failure drops
// the handle and demotes the state so the next Load fully reinitializes.
func (c *Controller) Complete(ctx context.Context, messages []model.ChatMessage) (string, error) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()

	if h == nil {
		return "", engine.ErrNotLoaded
	}

	reply, err := c.rt.Complete(ctx, messages)
	if err != nil {
		if engine.IsFatal(err) {
			c.dropHandle(ctx, h)
			c.log.Warn("runtime lost the model", zap.String("model", h.ModelID), zap.Error(err))
		}
		return "", err
	}
	return reply, nil
}

// dropHandle forgets h (if still current) and demotes the state.
func (c *Controller) dropHandle(ctx context.Context, h *engine.Handle) {
	if err := c.rt.Unload(ctx); err != nil {
		c.log.Debug("best-effort unload failed", zap.Error(err))
	}

	c.mu.Lock()
	if c.handle == h {
		c.handle = nil
	}
	c.mu.Unlock()

	c.update(EventState, func(s *model.ModelState) {
		s.Loaded = false
	})
}

// =============================================================================
// REMOVE
// =============================================================================

// Remove unloads modelID if it is resident and deletes its cached artifacts.
// The error is a *cachepurge.RemovalError for NotFound, Aggregate and
// Partial outcomes.
func (c *Controller) Remove(ctx context.Context, modelID string) (cachepurge.Result, error) {
	if modelID == "" {
		return cachepurge.Result{}, ErrNoModelID
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return cachepurge.Result{}, ErrLoadInProgress
	}
	c.inFlight = true
	h := c.handle
	stateModel := c.state.ModelID
	stateLoaded := c.state.Loaded
	c.mu.Unlock()

	// Loads are refused until the purge finishes.
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	log := c.log.With(zap.String("model", modelID))

	if h == nil && stateLoaded && stateModel == modelID {
		c.unloadRestored(ctx, modelID)
	}
	if h != nil && h.ModelID == modelID {
		if err := c.rt.Unload(ctx); err != nil {
			log.Warn("unload before removal failed", zap.Error(err))
		}
		c.mu.Lock()
		if c.handle == h {
			c.handle = nil
		}
		c.mu.Unlock()
	}
	if (h != nil && h.ModelID == modelID) || stateModel == modelID {
		c.update(EventState, func(s *model.ModelState) {
			s.Loaded = false
			s.ModelID = ""
		})
	}

	if c.cache == nil {
		return cachepurge.Result{}, &cachepurge.RemovalError{Kind: cachepurge.RemovalNotFound, ModelID: modelID}
	}

	res, err := cachepurge.Purge(ctx, c.cache, modelID)
	switch {
	case err == nil:
		log.Info("model removed", zap.Int("deleted", res.Deleted))
	case cachepurge.IsNotFound(err):
		log.Info("no cached artifacts for model")
	default:
		log.Warn("model removal incomplete", zap.Int("deleted", res.Deleted), zap.Error(err))
	}
	return res, err
}

// =============================================================================
// CATALOG
// =============================================================================

// AvailableModels lists loadable models, falling back to the built-in
// catalog when the runtime cannot list them.
func (c *Controller) AvailableModels(ctx context.Context) []string {
	models, err := engine.Catalog(ctx, c.rt)
	if err != nil {
		c.log.Debug("model listing failed, using built-in catalog", zap.Error(err))
	}
	return models
}

// =============================================================================
// STATE UPDATES
// =============================================================================

// update applies fn under the lock and notifies outside it.
func (c *Controller) update(kind EventKind, fn func(s *model.ModelState)) {
	c.mu.Lock()
	fn(&c.state)
	if c.state.Loading {
		c.state.Loaded = false
	}
	ev := Event{Kind: kind, State: c.state}
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(ev)
	}
}
