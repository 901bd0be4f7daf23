package state

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/sessionbot/core/logger"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Machine drives per-user sessions stored in a Store and dispatches
// incoming updates to the handler registered for the current state.
type Machine[T any] struct {
	store Store[T]
	hooks Hooks[T]
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// NewMachine wires a Machine to store. Stores implementing Expirer report
// evictions through Hooks.OnDiscard with ReasonExpired.
func NewMachine[T any](store Store[T], hooks Hooks[T]) *Machine[T] {
	if store == nil {
		store = NewMemoryStore[T]()
	}
	m := &Machine[T]{
		store:    store,
		hooks:    hooks,
		now:      time.Now,
		handlers: make(map[State]tele.HandlerFunc),
	}
	if exp, ok := store.(Expirer[T]); ok {
		exp.OnExpire(func(userID int64, s Session[T]) {
			m.discarded(userID, s, ReasonExpired)
		})
	}
	return m
}

// Handle associates a state with its handler.
func (m *Machine[T]) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// Begin creates a session in st, discarding any previous one for the user.
func (m *Machine[T]) Begin(userID int64, st State, data T) {
	if old, ok := m.store.Delete(userID); ok {
		m.discarded(userID, old, ReasonReplaced)
	}
	m.store.Put(userID, Session[T]{State: st, Data: data, UpdatedAt: m.now()})
	logger.Store.Debug("fsm begin",
		slog.String("event", "fsm.begin"),
		slog.Int64("user_id", userID),
		slog.String("to_step", string(st)),
	)
}

// Advance moves an existing session to st. It reports false when no session exists.
func (m *Machine[T]) Advance(userID int64, st State) bool {
	s, ok := m.store.Get(userID)
	if !ok {
		return false
	}
	from := s.State
	s.State = st
	s.UpdatedAt = m.now()
	m.store.Put(userID, s)
	logger.Store.Debug("fsm advance",
		slog.String("event", "fsm.advance"),
		slog.Int64("user_id", userID),
		slog.String("from_step", string(from)),
		slog.String("to_step", string(st)),
	)
	return true
}

// Update applies fn to the stored session and writes it back.
func (m *Machine[T]) Update(userID int64, fn func(s *Session[T])) bool {
	s, ok := m.store.Get(userID)
	if !ok {
		return false
	}
	fn(&s)
	s.UpdatedAt = m.now()
	m.store.Put(userID, s)
	return true
}

// Touch refreshes UpdatedAt, restarting the idle timer of TTL stores.
func (m *Machine[T]) Touch(userID int64) bool {
	return m.Update(userID, func(*Session[T]) {})
}

// Lookup returns the current session, if any.
func (m *Machine[T]) Lookup(userID int64) (Session[T], bool) {
	return m.store.Get(userID)
}

// Current returns the user's step or StateIdle.
func (m *Machine[T]) Current(userID int64) State {
	if s, ok := m.store.Get(userID); ok {
		return s.State
	}
	return StateIdle
}

// Discard removes the session and runs the discard hook. It reports whether
// anything was removed.
func (m *Machine[T]) Discard(userID int64, reason Reason) bool {
	s, ok := m.store.Delete(userID)
	if !ok {
		return false
	}
	m.discarded(userID, s, reason)
	return true
}

// InProgress reports whether the user currently has an active session.
func (m *Machine[T]) InProgress(userID int64) bool {
	_, ok := m.store.Get(userID)
	return ok
}

// ManagerHandler executes the handler registered for the user's current state, if any.
func (m *Machine[T]) ManagerHandler(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	current := m.Current(sender.ID)
	ctx := tghelpers.BuildContext(c)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()

	status := "ok"
	if !ok {
		status = "skip"
	}
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", status),
		slog.String("step", string(current)),
	)
	if !ok {
		return nil
	}
	return handler(c)
}

func (m *Machine[T]) discarded(userID int64, s Session[T], reason Reason) {
	logger.Store.Debug("fsm discard",
		slog.String("event", "fsm.discard"),
		slog.Int64("user_id", userID),
		slog.String("from_step", string(s.State)),
		slog.String("reason", string(reason)),
	)
	if m.hooks.OnDiscard != nil {
		m.hooks.OnDiscard(userID, s, reason)
	}
}
