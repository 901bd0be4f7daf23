package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeAuth struct {
	mu sync.Mutex

	connectErrs  []error
	sendCodeErrs []error
	signInErrs   []error
	passwordErrs []error
	exportErr    error

	// signInDelay and signInPanic shape a slow or crashing SignIn.
	signInDelay time.Duration
	signInPanic bool

	connectCalls  int
	sendCodeCalls int
	signInCodes   []string
	passwords     []string
	disconnects   int
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (a *fakeAuth) Connect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectCalls++
	return pop(&a.connectErrs)
}

func (a *fakeAuth) SendCode(_ context.Context, phone string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendCodeCalls++
	if err := pop(&a.sendCodeErrs); err != nil {
		return "", err
	}
	return "hash-" + phone, nil
}

func (a *fakeAuth) SignIn(_ context.Context, _, _, code string) error {
	a.mu.Lock()
	delay, crash := a.signInDelay, a.signInPanic
	a.mu.Unlock()
	time.Sleep(delay)
	if crash {
		panic("sign in exploded")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signInCodes = append(a.signInCodes, code)
	return pop(&a.signInErrs)
}

func (a *fakeAuth) CheckPassword(_ context.Context, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.passwords = append(a.passwords, password)
	return pop(&a.passwordErrs)
}

func (a *fakeAuth) ExportSession(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.exportErr != nil {
		return "", a.exportErr
	}
	return "exported-session", nil
}

func (a *fakeAuth) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnects++
	return nil
}

func (a *fakeAuth) closed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disconnects
}

type fakeSessions struct {
	mu   sync.Mutex
	data map[int64]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: map[int64]string{}}
}

func (s *fakeSessions) Get(_ context.Context, userID int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[userID]
	return v, ok, nil
}

func (s *fakeSessions) Set(_ context.Context, userID int64, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == "" {
		delete(s.data, userID)
		return nil
	}
	s.data[userID] = session
	return nil
}

func (s *fakeSessions) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []string
	edits   []string
	deleted int
}

func (f *fakeMessenger) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, fmt.Sprint(what))
	return &tele.Message{ID: f.nextID, Chat: &tele.Chat{ID: 500}}, nil
}

func (f *fakeMessenger) Edit(_ tele.Editable, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, fmt.Sprint(what))
	return &tele.Message{}, nil
}

func (f *fakeMessenger) Delete(tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakeMessenger) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakeMessenger) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context
	update  tele.Update
	store   map[string]any
	replies []string
}

func newContext(userID int64, text string) *fakeContext {
	return chatContext(userID, &tele.Chat{ID: userID, Type: tele.ChatPrivate}, text)
}

func groupContext(userID int64, text string) *fakeContext {
	return chatContext(userID, &tele.Chat{ID: -100555, Type: tele.ChatSuperGroup}, text)
}

func chatContext(userID int64, chat *tele.Chat, text string) *fakeContext {
	u := &tele.User{ID: userID, FirstName: "Test"}
	return &fakeContext{
		update: tele.Update{ID: 1, Message: &tele.Message{ID: 77, Sender: u, Chat: chat, Text: text}},
		store:  map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update     { return f.update }
func (f *fakeContext) Message() *tele.Message  { return f.update.Message }
func (f *fakeContext) Sender() *tele.User      { return f.update.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat        { return f.update.Message.Chat }
func (f *fakeContext) Text() string            { return f.update.Message.Text }
func (f *fakeContext) Get(key string) any      { return f.store[key] }
func (f *fakeContext) Set(key string, val any) { f.store[key] = val }
func (f *fakeContext) Send(what any, _ ...any) error {
	f.replies = append(f.replies, fmt.Sprint(what))
	return nil
}

type harness struct {
	mgr      *Manager
	auth     *fakeAuth
	dials    int
	sessions *fakeSessions
	msgr     *fakeMessenger
	sleeps   []time.Duration
}

func newHarness(opts Options) *harness {
	h := &harness{auth: &fakeAuth{}, sessions: newFakeSessions(), msgr: &fakeMessenger{}}
	opts.Sessions = h.sessions
	opts.Messenger = h.msgr
	opts.Dial = func() AuthSession {
		h.dials++
		return h.auth
	}
	if opts.Sleep == nil {
		opts.Sleep = func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 1
	}
	if opts.MaxFloodWait == 0 {
		opts.MaxFloodWait = time.Minute
	}
	if opts.FrameInterval == 0 {
		opts.DisableAnimation = true
	}
	mgr, err := NewManager(opts)
	if err != nil {
		panic(err)
	}
	h.mgr = mgr
	return h
}

func (h *harness) text(userID int64, text string) *fakeContext {
	c := newContext(userID, text)
	if err := h.mgr.ManagerHandler(c); err != nil {
		panic(err)
	}
	return c
}

var errBoom = errors.New("boom")
