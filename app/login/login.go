// Package login runs the per-user conversation that turns a phone number,
// a login code and an optional two-step password into a stored session.
package login

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m3rciful/sessionbot/core/logger"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"
	"github.com/m3rciful/sessionbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Conversation steps.
const (
	StepPhone    state.State = "login.phone"
	StepCode     state.State = "login.code"
	StepPassword state.State = "login.password"
)

// CancelText is the label of the reply-keyboard cancel button.
const CancelText = "❌ Cancel"

// AuthSession is a transient MTProto client used for one login.
type AuthSession interface {
	Connect(ctx context.Context) error
	SendCode(ctx context.Context, phone string) (string, error)
	SignIn(ctx context.Context, phone, codeHash, code string) error
	CheckPassword(ctx context.Context, password string) error
	ExportSession(ctx context.Context) (string, error)
	Disconnect() error
}

// SessionStore persists exported sessions.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (string, bool, error)
	Set(ctx context.Context, userID int64, session string) error
	Delete(ctx context.Context, userID int64) error
}

// Messenger is the subset of the bot API used for status messages.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Conversation is the per-user login payload.
type Conversation struct {
	Phone    string
	CodeHash string
	Status   tele.StoredMessage
	Attempt  string

	mu   sync.Mutex
	auth AuthSession
}

func (c *Conversation) attach(a AuthSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

// Auth returns the attached transient session, if any.
func (c *Conversation) Auth() AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

// release detaches and disconnects the transient session. Later calls are no-ops.
func (c *Conversation) release() error {
	c.mu.Lock()
	a := c.auth
	c.auth = nil
	c.mu.Unlock()
	if a == nil {
		return nil
	}
	return a.Disconnect()
}

// Options configure a Manager.
type Options struct {
	Sessions  SessionStore
	Dial      func() AuthSession
	Messenger Messenger
	// Store defaults to an in-memory store without expiry.
	Store state.Store[*Conversation]

	MaxRetries       int
	MaxFloodWait     time.Duration
	FrameInterval    time.Duration
	DisableAnimation bool
	ExposeErrors     bool

	// Sleep replaces the flood-wait timer in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Manager owns the login conversations of all users.
type Manager struct {
	opts    Options
	machine *state.Machine[*Conversation]
	locks   userLocks
	turns   turns

	msgrMu sync.RWMutex
	msgr   Messenger
}

// NewManager validates opts and registers the step handlers.
func NewManager(opts Options) (*Manager, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("login: session store is required")
	}
	if opts.Dial == nil {
		return nil, fmt.Errorf("login: dial func is required")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 300 * time.Millisecond
	}
	store := opts.Store
	if store == nil {
		store = state.NewMemoryStore[*Conversation]()
	}

	m := &Manager{opts: opts, msgr: opts.Messenger}
	m.machine = state.NewMachine(store, state.Hooks[*Conversation]{OnDiscard: m.onDiscard})
	m.machine.Handle(StepPhone, m.turn(m.onPhone))
	m.machine.Handle(StepCode, m.turn(m.onCode))
	m.machine.Handle(StepPassword, m.turn(m.onPassword))
	return m, nil
}

// SetMessenger installs the bot once it is running.
func (m *Manager) SetMessenger(msgr Messenger) {
	m.msgrMu.Lock()
	defer m.msgrMu.Unlock()
	m.msgr = msgr
}

func (m *Manager) messenger() Messenger {
	m.msgrMu.RLock()
	defer m.msgrMu.RUnlock()
	return m.msgr
}

// InProgress reports whether the user has a login conversation.
func (m *Manager) InProgress(userID int64) bool {
	return m.machine.InProgress(userID)
}

func (m *Manager) current(userID int64) state.State {
	return m.machine.Current(userID)
}

// private reports whether c comes from a one-to-one chat with the bot.
func private(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && chat.Type == tele.ChatPrivate
}

// ManagerHandler routes a private text message to the handler of the user's
// step. Turns of one user never overlap; the cancel button works in every
// step and interrupts a turn that is still waiting on Telegram.
func (m *Manager) ManagerHandler(c tele.Context) error {
	u := c.Sender()
	if u == nil || !private(c) {
		return nil
	}
	if IsCancelText(c.Text()) {
		m.turns.interrupt(u.ID)
	}
	unlock := m.locks.lock(u.ID)
	defer unlock()

	s, ok := m.machine.Lookup(u.ID)
	if !ok {
		return nil
	}
	if IsCancelText(c.Text()) {
		ctx := logger.WithAttempt(tghelpers.BuildContext(c), s.Data.Attempt)
		return m.cancel(ctx, c, u.ID, s.Data)
	}
	return m.machine.ManagerHandler(c)
}
