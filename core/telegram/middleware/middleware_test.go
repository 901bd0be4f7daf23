package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// fakeContext satisfies tele.Context for middleware tests; only the methods
// the middlewares touch are implemented.
type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
}

func newFakeContext(userID int64, kind string) *fakeContext {
	u := &tele.User{ID: userID}
	upd := tele.Update{ID: int(userID)}
	switch kind {
	case "callback":
		upd.Callback = &tele.Callback{Sender: u, Data: "\fclose_btn|1"}
	default:
		upd.Message = &tele.Message{Sender: u, Chat: &tele.Chat{ID: userID}, Text: "hi"}
	}
	return &fakeContext{update: upd, store: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update { return f.update }
func (f *fakeContext) Sender() *tele.User {
	if f.update.Callback != nil {
		return f.update.Callback.Sender
	}
	return f.update.Message.Sender
}
func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Message != nil {
		return f.update.Message.Chat
	}
	return nil
}
func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}
func (f *fakeContext) Get(key string) any      { return f.store[key] }
func (f *fakeContext) Set(key string, val any) { f.store[key] = val }
func (f *fakeContext) Send(any, ...any) error  { return nil }
func (f *fakeContext) Edit(any, ...any) error  { return nil }
func (f *fakeContext) Delete() error           { return nil }

func TestRateLimitMiddleware(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(newFakeContext(1, "message"))
	_ = h(newFakeContext(1, "message"))
	_ = h(newFakeContext(2, "message"))
	_ = h(newFakeContext(1, "callback"))

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if limited != 1 {
		t.Fatalf("limited = %d, want 1", limited)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID:  42,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(newFakeContext(42, "message"))
	_ = h(newFakeContext(7, "message"))

	if calls != 1 || rejected != 1 {
		t.Fatalf("calls = %d rejected = %d", calls, rejected)
	}
}

func TestRecoverMiddlewareTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newFakeContext(1, "message")); err == nil {
		t.Fatal("expected error from recovered panic")
	}

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	if err := h(newFakeContext(1, "message")); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestMessageMetricsMiddlewareCounts(t *testing.T) {
	c := newFakeContext(1, "message")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("a")
		_ = c.Edit("status")
		_ = c.Delete()
		return c.Send("b", &tele.ReplyMarkup{})
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	got := GetCounters(c)
	if got.Sent != 2 || got.Edited != 1 || got.Deleted != 1 || !got.Keyboard {
		t.Fatalf("counters = %+v", got)
	}
	if (GetCounters(newFakeContext(2, "message")) != Counters{}) {
		t.Fatal("fresh context should have zero counters")
	}
}

func TestUpdateKind(t *testing.T) {
	if got := UpdateKind(newFakeContext(1, "callback").Update()); got != "callback" {
		t.Fatalf("kind = %s", got)
	}
	if got := UpdateKind(tele.Update{}); got != "other" {
		t.Fatalf("kind = %s", got)
	}
}
