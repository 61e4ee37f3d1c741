// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/window"
)

// =============================================================================
// ERRORS
// =============================================================================

// Precondition failures of SendMessage. None of them changes any state.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrBusy           = errors.New("a reply is already being generated")
	ErrModelNotLoaded = errors.New("no model is loaded")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Model is the part of the lifecycle controller the store depends on.
type Model interface {
	State() model.ModelState
	EnsureReady(ctx context.Context) bool
	Complete(ctx context.Context, messages []model.ChatMessage) (string, error)
}

// Config holds store settings.
type Config struct {
	// MaxTurns bounds the history replayed per completion (default: 6).
	MaxTurns int

	// TitleLength is how many characters of the role become the title (default: 40).
	TitleLength int

	// DefaultRole seeds sessions created without a role.
	DefaultRole string

	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		MaxTurns:    window.DefaultMaxTurns,
		TitleLength: model.DefaultTitleLength,
		DefaultRole: model.DefaultRole,
	}
}

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	Sessions model.SessionCollection
	Busy     bool
}

// =============================================================================
// STORE
// =============================================================================

// Store manages the session collection. It is safe for concurrent use.
type Store struct {
	model       Model
	log         *zap.Logger
	maxTurns    int
	titleLength int
	defaultRole string

	mu       sync.Mutex
	coll     model.SessionCollection
	busy     bool
	onChange func()
}

// New creates a store over coll. An invalid or empty collection is replaced
// by one fresh session.
func New(m Model, coll model.SessionCollection, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.TitleLength <= 0 {
		cfg.TitleLength = def.TitleLength
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = def.DefaultRole
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if !coll.Valid() {
		coll = model.NewCollection(cfg.DefaultRole)
	}

	return &Store{
		model:       m,
		log:         cfg.Logger.Named("chat"),
		maxTurns:    cfg.MaxTurns,
		titleLength: cfg.TitleLength,
		defaultRole: cfg.DefaultRole,
		coll:        coll.Clone(),
	}
}

// SetChangeCallback sets the function called after every mutation. It is
// invoked outside the store's lock.
func (s *Store) SetChangeCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// mutate runs fn under the lock and notifies when it reports a change.
func (s *Store) mutate(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	cb := s.onChange
	s.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
	return changed
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns a deep copy of the sessions and the busy flag.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Sessions: s.coll.Clone(), Busy: s.busy}
}

// Active returns a copy of the active session.
func (s *Store) Active() *model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Active().Clone()
}

// Sessions returns copies of all sessions, oldest first.
func (s *Store) Sessions() []*model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.coll.IDs()
	out := make([]*model.ChatSession, len(ids))
	for i, id := range ids {
		out[i] = s.coll.Chats[id].Clone()
	}
	return out
}

// Busy reports whether a send is waiting on the model.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// CreateSession adds a session seeded with role (the default role when
// empty), makes it active and returns its id.
func (s *Store) CreateSession(role string) string {
	if role == "" {
		role = s.defaultRole
	}
	sess := model.NewSession(role)
	s.mutate(func() bool {
		s.coll.Chats[sess.ID] = sess
		s.coll.ActiveChatID = sess.ID
		return true
	})
	return sess.ID
}

// SetActive points the active session at id. Unknown ids are ignored.
func (s *Store) SetActive(id string) bool {
	return s.mutate(func() bool {
		if _, ok := s.coll.Chats[id]; !ok || s.coll.ActiveChatID == id {
			return false
		}
		s.coll.ActiveChatID = id
		return true
	})
}

// DeleteSession removes a session. Unknown ids and the last remaining
// session are ignored. Deleting the active session activates the oldest
// remaining one.
func (s *Store) DeleteSession(id string) bool {
	return s.mutate(func() bool {
		if _, ok := s.coll.Chats[id]; !ok || len(s.coll.Chats) <= 1 {
			return false
		}
		delete(s.coll.Chats, id)
		if s.coll.ActiveChatID == id {
			s.coll.ActiveChatID = s.coll.IDs()[0]
		}
		return true
	})
}

// EditRoleSeed replaces the active session's seed role. Ignored once the
// session is locked.
func (s *Store) EditRoleSeed(text string) bool {
	return s.mutate(func() bool {
		sess := s.coll.Active()
		if sess.RoleLocked {
			return false
		}
		sess.RoleSeedText = text
		return true
	})
}

// AppendUserMessage appends a user message to the active session, locking
// its role on the first one.
func (s *Store) AppendUserMessage(text string) {
	s.mutate(func() bool {
		s.appendUserLocked(s.coll.Active(), text)
		return true
	})
}

// AppendAssistantMessage appends a reply to the active session.
func (s *Store) AppendAssistantMessage(text string) {
	s.mutate(func() bool {
		s.coll.Active().Append(model.NewAssistantMessage(text))
		return true
	})
}

// AppendAssistantError appends an error-marked reply to the active session.
func (s *Store) AppendAssistantError(text string) {
	s.mutate(func() bool {
		s.coll.Active().Append(model.NewAssistantError(text))
		return true
	})
}

func (s *Store) appendUserLocked(sess *model.ChatSession, text string) {
	sess.Lock(s.titleLength)
	sess.Append(model.NewUserMessage(text))
}

// appendTo appends msg to session id, dropping it if the session is gone.
func (s *Store) appendTo(id string, msg model.ChatMessage) {
	s.mutate(func() bool {
		sess, ok := s.coll.Chats[id]
		if !ok {
			s.log.Debug("session deleted before reply arrived", zap.String("session", id))
			return false
		}
		sess.Append(msg)
		return true
	})
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage appends text to the active session, asks the model for a reply
// and appends it (or an error-marked message) to the same session, even if
// the active session changes meanwhile.
//
// ErrEmptyMessage, ErrModelNotLoaded and ErrBusy reject the send without
// changing anything. A failed completion is recorded in the transcript and
// SendMessage returns nil.
func (s *Store) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !s.model.State().Loaded {
		return ErrModelNotLoaded
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.mu.Unlock()

	if !s.model.EnsureReady(ctx) {
		return ErrModelNotLoaded
	}

	var (
		sessionID string
		request   []model.ChatMessage
		rejected  bool
	)
	s.mutate(func() bool {
		// Re-checked: another send may have started since the first check.
		if s.busy {
			rejected = true
			return false
		}
		s.busy = true

		sess := s.coll.Active()
		sessionID = sess.ID
		history := sess.Messages
		s.appendUserLocked(sess, text)
		request = window.Build(sess.EffectiveRole(), history, text, s.maxTurns)
		return true
	})
	if rejected {
		return ErrBusy
	}

	defer s.mutate(func() bool {
		s.busy = false
		return true
	})

	reply, err := s.model.Complete(ctx, request)
	if err != nil {
		s.log.Warn("completion failed", zap.String("session", sessionID), zap.Error(err))
		s.appendTo(sessionID, model.NewAssistantError(err.Error()))
		return nil
	}
	s.appendTo(sessionID, model.NewAssistantMessage(reply))
	return nil
}
