package login

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/sessionbot/app/mtproto"
	"github.com/m3rciful/sessionbot/core/telegram/state"
)

const uid = int64(1001)

func (h *harness) start(t *testing.T) *fakeContext {
	t.Helper()
	c := newContext(uid, "/login")
	if err := h.mgr.Start(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	return c
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]bool{
		"+919876543210":   true,
		"+91 98765 43210": true,
		"919876543210":    false,
		"+91abc":          false,
		"+":               false,
		"":                false,
		" +1 555 0100 ":   true,
		"+1-555-0100":     false,
		"++15550100":      false,
	}
	for in, want := range cases {
		if _, ok := NormalizePhone(in); ok != want {
			t.Errorf("NormalizePhone(%q) = %v, want %v", in, ok, want)
		}
	}
	if got, _ := NormalizePhone("+91 98765 43210"); got != "+919876543210" {
		t.Fatalf("spaces not stripped: %q", got)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got, ok := NormalizeCode("12 345"); !ok || got != "12345" {
		t.Fatalf("NormalizeCode = %q %v", got, ok)
	}
	for _, bad := range []string{"", "12a45", "12-345"} {
		if _, ok := NormalizeCode(bad); ok {
			t.Errorf("NormalizeCode(%q) accepted", bad)
		}
	}
}

func TestFullLoginWithPassword(t *testing.T) {
	h := newHarness(Options{})
	h.auth.signInErrs = []error{fmt.Errorf("sign in: %w", mtproto.ErrPasswordNeeded)}

	h.start(t)
	if got := h.mgr.current(uid); got != StepPhone {
		t.Fatalf("step after start = %s", got)
	}
	if !strings.Contains(h.msgr.sent[0], "30%") {
		t.Fatalf("status message should show 30%%: %s", h.msgr.sent[0])
	}

	h.text(uid, "+91 98765 43210")
	if got := h.mgr.current(uid); got != StepCode {
		t.Fatalf("step after phone = %s", got)
	}
	if !strings.Contains(h.msgr.lastEdit(), "60%") {
		t.Fatalf("expected 60%% after phone, got %s", h.msgr.lastEdit())
	}

	h.text(uid, "12 345")
	if got := h.mgr.current(uid); got != StepPassword {
		t.Fatalf("step after code = %s", got)
	}
	if len(h.auth.signInCodes) != 1 || h.auth.signInCodes[0] != "12345" {
		t.Fatalf("sign in codes = %v", h.auth.signInCodes)
	}

	h.text(uid, "hunter2")
	if h.mgr.InProgress(uid) {
		t.Fatal("conversation should be finished")
	}
	if got, ok, _ := h.sessions.Get(context.Background(), uid); !ok || got != "exported-session" {
		t.Fatalf("stored session = %q %v", got, ok)
	}
	if h.auth.closed() == 0 {
		t.Fatal("transient session not closed")
	}
	if h.msgr.deleted != 1 {
		t.Fatalf("password message should be deleted, deleted=%d", h.msgr.deleted)
	}
	if !strings.Contains(h.msgr.lastEdit(), "100%") {
		t.Fatalf("final status should show 100%%: %s", h.msgr.lastEdit())
	}
}

func TestLoginWithoutPassword(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	h.text(uid, "+15550100")
	h.text(uid, "55555")
	if h.mgr.InProgress(uid) {
		t.Fatal("conversation should be finished")
	}
	if _, ok, _ := h.sessions.Get(context.Background(), uid); !ok {
		t.Fatal("session not stored")
	}
	if len(h.auth.passwords) != 0 {
		t.Fatal("password step must be skipped")
	}
}

func TestBadPhoneFormatKeepsState(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	for _, in := range []string{"919876543210", "+91abc"} {
		h.text(uid, in)
		if got := h.mgr.current(uid); got != StepPhone {
			t.Fatalf("%q moved the conversation to %s", in, got)
		}
	}
	if h.dials != 0 {
		t.Fatalf("no connection expected, dials=%d", h.dials)
	}
	if !strings.Contains(h.msgr.lastEdit(), "Invalid format") {
		t.Fatalf("expected format error, got %s", h.msgr.lastEdit())
	}
}

func TestBadCodeFormatKeepsState(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	h.text(uid, "+15550100")
	h.text(uid, "12ab")
	if got := h.mgr.current(uid); got != StepCode {
		t.Fatalf("step = %s", got)
	}
	if len(h.auth.signInCodes) != 0 {
		t.Fatal("sign in must not be attempted")
	}
}

func TestAlreadyLoggedIn(t *testing.T) {
	h := newHarness(Options{})
	_ = h.sessions.Set(context.Background(), uid, "existing")
	c := h.start(t)
	if h.mgr.InProgress(uid) {
		t.Fatal("no conversation expected")
	}
	if len(c.replies) != 1 || !strings.Contains(c.replies[0], "already logged in") {
		t.Fatalf("replies = %v", c.replies)
	}
}

func TestServerRejectsPhone(t *testing.T) {
	h := newHarness(Options{})
	h.auth.sendCodeErrs = []error{fmt.Errorf("send code: %w", mtproto.ErrPhoneInvalid)}
	h.start(t)
	h.text(uid, "+15550100")
	if h.mgr.InProgress(uid) {
		t.Fatal("conversation should be discarded")
	}
	if h.auth.closed() == 0 {
		t.Fatal("transient session not closed")
	}
	if !strings.Contains(h.msgr.lastEdit(), "Invalid phone number") {
		t.Fatalf("status = %s", h.msgr.lastEdit())
	}
}

func TestCodeInvalidStaysExpiredDiscards(t *testing.T) {
	h := newHarness(Options{})
	h.auth.signInErrs = []error{mtproto.ErrCodeInvalid, mtproto.ErrCodeExpired}
	h.start(t)
	h.text(uid, "+15550100")

	h.text(uid, "11111")
	if got := h.mgr.current(uid); got != StepCode {
		t.Fatalf("invalid code should stay, step = %s", got)
	}
	if h.auth.closed() != 0 {
		t.Fatal("session closed too early")
	}

	h.text(uid, "22222")
	if h.mgr.InProgress(uid) {
		t.Fatal("expired code should discard")
	}
	if h.auth.closed() == 0 {
		t.Fatal("transient session not closed")
	}
}

func TestPasswordInvalidStays(t *testing.T) {
	h := newHarness(Options{})
	h.auth.signInErrs = []error{mtproto.ErrPasswordNeeded}
	h.auth.passwordErrs = []error{mtproto.ErrPasswordInvalid, errBoom}
	h.start(t)
	h.text(uid, "+15550100")
	h.text(uid, "12345")

	h.text(uid, "wrong")
	if got := h.mgr.current(uid); got != StepPassword {
		t.Fatalf("step = %s", got)
	}
	h.text(uid, "broken")
	if h.mgr.InProgress(uid) {
		t.Fatal("unexpected error should discard")
	}
	if h.auth.closed() == 0 {
		t.Fatal("transient session not closed")
	}
}

func TestFloodWaitRetriedOnce(t *testing.T) {
	h := newHarness(Options{})
	h.auth.sendCodeErrs = []error{&mtproto.FloodWaitError{Wait: 3 * time.Second}}
	h.start(t)
	h.text(uid, "+15550100")

	if got := h.mgr.current(uid); got != StepCode {
		t.Fatalf("step = %s", got)
	}
	if h.auth.sendCodeCalls != 2 {
		t.Fatalf("send code calls = %d, want 2", h.auth.sendCodeCalls)
	}
	if len(h.sleeps) != 1 || h.sleeps[0] != 3*time.Second {
		t.Fatalf("sleeps = %v", h.sleeps)
	}
}

func TestFloodWaitTwiceIsTerminal(t *testing.T) {
	h := newHarness(Options{})
	h.auth.signInErrs = []error{
		&mtproto.FloodWaitError{Wait: time.Second},
		&mtproto.FloodWaitError{Wait: time.Second},
	}
	h.start(t)
	h.text(uid, "+15550100")
	h.text(uid, "12345")

	if h.mgr.InProgress(uid) {
		t.Fatal("second failure should discard")
	}
	if len(h.auth.signInCodes) != 2 {
		t.Fatalf("sign in calls = %d, want exactly 2", len(h.auth.signInCodes))
	}
	if h.auth.closed() == 0 {
		t.Fatal("transient session not closed")
	}
	if !strings.Contains(h.msgr.lastEdit(), "rate limiting") {
		t.Fatalf("status = %s", h.msgr.lastEdit())
	}
}

func TestFloodWaitOverLimitIsTerminal(t *testing.T) {
	h := newHarness(Options{MaxFloodWait: time.Minute})
	h.auth.sendCodeErrs = []error{&mtproto.FloodWaitError{Wait: time.Hour}}
	h.start(t)
	h.text(uid, "+15550100")
	if h.mgr.InProgress(uid) {
		t.Fatal("oversized wait should discard")
	}
	if len(h.sleeps) != 0 || h.auth.sendCodeCalls != 1 {
		t.Fatalf("sleeps=%v calls=%d", h.sleeps, h.auth.sendCodeCalls)
	}
}

func TestCancelButtonClosesSession(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	h.text(uid, "+15550100")
	c := h.text(uid, "❌ CANCEL")

	if h.mgr.InProgress(uid) {
		t.Fatal("cancel should discard")
	}
	if h.auth.closed() == 0 {
		t.Fatal("transient session not closed")
	}
	if len(c.replies) != 1 || !strings.Contains(c.replies[0], "cancelled") {
		t.Fatalf("replies = %v", c.replies)
	}
	if len(h.auth.signInCodes) != 0 {
		t.Fatal("cancel text must not reach the code step")
	}
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(Options{})
	idle := newContext(uid, "/cancel")
	if err := h.mgr.Cancel(idle); err != nil {
		t.Fatal(err)
	}
	if len(idle.replies) != 0 {
		t.Fatalf("no reply expected without a login, got %v", idle.replies)
	}

	h.start(t)
	h.text(uid, "+15550100")
	c := newContext(uid, "/cancellogin")
	if err := h.mgr.Cancel(c); err != nil {
		t.Fatal(err)
	}
	if h.mgr.InProgress(uid) || h.auth.closed() == 0 {
		t.Fatal("cancel should discard and close")
	}
	if len(c.replies) != 1 {
		t.Fatalf("replies = %v", c.replies)
	}
}

func TestLogoutThenLoginStartsFresh(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	h.text(uid, "+15550100")
	h.text(uid, "12345")
	if _, ok, _ := h.sessions.Get(context.Background(), uid); !ok {
		t.Fatal("login did not store a session")
	}

	if err := h.mgr.Logout(newContext(uid, "/logout")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := h.sessions.Get(context.Background(), uid); ok {
		t.Fatal("logout should delete the session")
	}

	h.start(t)
	if got := h.mgr.current(uid); got != StepPhone {
		t.Fatalf("fresh login step = %s", got)
	}
}

func TestLogoutClosesInFlightLogin(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	h.text(uid, "+15550100")
	if err := h.mgr.Logout(newContext(uid, "/logout")); err != nil {
		t.Fatal(err)
	}
	if h.mgr.InProgress(uid) || h.auth.closed() == 0 {
		t.Fatal("logout should discard the login and close its session")
	}
}

func TestRestartReplacesConversation(t *testing.T) {
	h := newHarness(Options{})
	h.start(t)
	h.text(uid, "+15550100")
	first := h.auth

	h.auth = &fakeAuth{}
	h.start(t)
	if first.closed() == 0 {
		t.Fatal("replaced conversation must close its session")
	}
	if got := h.mgr.current(uid); got != StepPhone {
		t.Fatalf("step = %s", got)
	}
}

func TestGenericFailureText(t *testing.T) {
	for _, expose := range []bool{false, true} {
		h := newHarness(Options{ExposeErrors: expose})
		h.auth.connectErrs = []error{errBoom}
		h.start(t)
		h.text(uid, "+15550100")
		if h.mgr.InProgress(uid) {
			t.Fatal("connect failure should discard")
		}
		if got := strings.Contains(h.msgr.lastEdit(), "boom"); got != expose {
			t.Fatalf("expose=%v, status=%s", expose, h.msgr.lastEdit())
		}
	}
}

func TestSaveFailureDiscards(t *testing.T) {
	h := newHarness(Options{})
	h.auth.exportErr = errBoom
	h.start(t)
	h.text(uid, "+15550100")
	h.text(uid, "12345")
	if h.mgr.InProgress(uid) {
		t.Fatal("export failure should discard")
	}
	if _, ok, _ := h.sessions.Get(context.Background(), uid); ok {
		t.Fatal("nothing should be stored")
	}
	if !strings.Contains(h.msgr.lastEdit(), "Failed to save") {
		t.Fatalf("status = %s", h.msgr.lastEdit())
	}
}

func TestAnimationStopsBeforeStepEdit(t *testing.T) {
	h := newHarness(Options{FrameInterval: time.Millisecond})
	h.start(t)
	h.text(uid, "+15550100")
	if !strings.Contains(h.msgr.lastEdit(), "60%") {
		t.Fatalf("step edit must be last, got %s", h.msgr.lastEdit())
	}
}

func TestIdleExpiryClosesSession(t *testing.T) {
	store, err := state.NewTTLStore[*Conversation](16, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	h := newHarness(Options{Store: store})
	h.start(t)
	h.text(uid, "+15550100")

	deadline := time.Now().Add(5 * time.Second)
	for h.auth.closed() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if h.auth.closed() == 0 {
		t.Fatal("expired conversation did not close its session")
	}
	if h.mgr.InProgress(uid) {
		t.Fatal("expired conversation still in store")
	}
}
