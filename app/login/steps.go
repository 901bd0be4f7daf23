package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/sessionbot/app/mtproto"
	"github.com/m3rciful/sessionbot/core/logger"
	"github.com/m3rciful/sessionbot/core/telegram/format"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"
	"github.com/m3rciful/sessionbot/core/telegram/keyboard"
	"github.com/m3rciful/sessionbot/core/telegram/netutil"
	"github.com/m3rciful/sessionbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const (
	textAlreadyLoggedIn = "<b>✅ You're already logged in!</b>\n\nTo switch accounts, first use /logout."
	textAskPhone        = "📞 Please send your <b>Telegram phone number</b> with country code.\n\n" +
		"<blockquote>Example: +919876543210</blockquote>\n\n" +
		"❌ Tap the <b>Cancel</b> button or send /cancel to stop."
	textBadPhone   = "<b>❌ Invalid format! Please use + followed by digits (e.g. +919876543210).</b>"
	textConnecting = "<b>🔄 Connecting to Telegram...</b>"
	textAskCode    = "<b>📩 Code sent to your Telegram app.</b>\n\n" +
		"Send it with spaces, like <code>12 345</code> or <code>1 2 3 4 5</code>.\n\n" +
		"<blockquote>Spaces keep Telegram from invalidating a forwarded code.</blockquote>"
	textPhoneInvalid = "<b>❌ Invalid phone number.</b> Please start again with /login."
	textBadCode      = "<b>❌ Invalid code! Please send digits only (spaces are fine).</b>"
	textVerifying    = "<b>🔍 Verifying code...</b>"
	textCodeInvalid  = "<b>❌ That code doesn't look right.</b> Please check it and try again."
	textCodeExpired  = "<b>⏰ The code has expired.</b> Please start over with /login."
	textAskPassword  = "<b>🔐 Two-step verification is enabled.</b>\n\nPlease enter your account <b>password</b>."
	textChecking     = "<b>🔑 Checking password...</b>"
	textBadPassword  = "<b>❌ Incorrect password.</b> Please try again."
	textRetryFailed  = "<b>❌ Telegram is rate limiting this login.</b> Please try again later with /login."
	textSaveFailed   = "<b>❌ Failed to save the session.</b> Please try /login again."
	textLoggedIn     = "<b>🎉 Login successful!</b>\n\n<i>Your session has been saved.</i>"
	textCancelled    = "<b>❌ Login process cancelled.</b>"
	textExpired      = "<b>⏰ Login timed out.</b> Start again with /login."
	textLoggedOut    = "<b>🚪 Logout successful!</b>\n\n<i>Your session has been cleared.</i>"
	textKeyboardGone = "Done."
)

// turn adapts a step to a machine handler. The caller holds the user lock.
// The step context is cancelled by interrupt; a panicking step ends the
// conversation like any other failure.
func (m *Manager) turn(step func(ctx context.Context, c tele.Context, userID int64, conv *Conversation) error) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		u := c.Sender()
		if u == nil {
			return nil
		}
		s, ok := m.machine.Lookup(u.ID)
		if !ok {
			return nil
		}
		ctx, end := m.turns.begin(logger.WithAttempt(tghelpers.BuildContext(c), s.Data.Attempt), u.ID)
		defer end()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("login: %s step panicked: %v", s.State, r)
				m.terminate(ctx, u.ID, s.Data, s.State, m.genericFailure(err), err)
			}
		}()
		return step(ctx, c, u.ID, s.Data)
	}
}

// interrupted reports whether the turn was cancelled by /cancel, /logout or a
// new /login. The interrupting handler owns the conversation from then on.
func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}

// IsCancelText reports whether text is the cancel button label.
func IsCancelText(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), CancelText)
}

// NormalizePhone strips spaces and reports whether the rest is '+' followed by digits.
func NormalizePhone(text string) (string, bool) {
	phone := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if len(phone) < 2 || phone[0] != '+' {
		return phone, false
	}
	return phone, isDigits(phone[1:])
}

// NormalizeCode strips spaces and reports whether the rest is digits only.
func NormalizeCode(text string) (string, bool) {
	code := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	return code, isDigits(code)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Start handles /login.
func (m *Manager) Start(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return tghelpers.ErrNoSender
	}
	if !private(c) {
		return nil
	}
	m.turns.interrupt(u.ID)
	unlock := m.locks.lock(u.ID)
	defer unlock()

	ctx := tghelpers.BuildContext(c)
	if _, ok, err := m.opts.Sessions.Get(ctx, u.ID); err != nil {
		return err
	} else if ok {
		return tghelpers.SendHTML(c, textAlreadyLoggedIn)
	}

	msgr := m.messenger()
	if msgr == nil {
		return errors.New("login: messenger not configured")
	}
	conv := &Conversation{Attempt: uuid.NewString()[:8]}
	ctx = logger.WithAttempt(ctx, conv.Attempt)

	opts := statusOptions()
	opts.ReplyMarkup = keyboard.ReplyButtons([]string{CancelText})
	msg, err := msgr.Send(c.Chat(), renderStatus(StepPhone, textAskPhone), opts)
	if err != nil {
		return err
	}
	conv.Status = tele.StoredMessage{MessageID: strconv.Itoa(msg.ID), ChatID: msg.Chat.ID}

	m.machine.Begin(u.ID, StepPhone, conv)
	logger.Info(ctx, "login", "login.start",
		slog.String("status", "ok"),
		slog.String("step", string(StepPhone)),
	)
	return nil
}

// Cancel handles /cancel. Nothing is sent when no login is in flight.
func (m *Manager) Cancel(c tele.Context) error {
	u := c.Sender()
	if u == nil || !private(c) {
		return nil
	}
	m.turns.interrupt(u.ID)
	unlock := m.locks.lock(u.ID)
	defer unlock()

	s, ok := m.machine.Lookup(u.ID)
	if !ok {
		return nil
	}
	ctx := logger.WithAttempt(tghelpers.BuildContext(c), s.Data.Attempt)
	return m.cancel(ctx, c, u.ID, s.Data)
}

func (m *Manager) cancel(ctx context.Context, c tele.Context, userID int64, conv *Conversation) error {
	m.machine.Discard(userID, state.ReasonCancelled)
	m.editStatus(ctx, conv, textCancelled)
	logger.Info(ctx, "login", "login.cancel", slog.String("status", "cancelled"))
	return tghelpers.SendHTML(c, textCancelled, keyboard.RemoveKeyboard())
}

// Logout handles /logout: it drops any login in flight and the stored session.
func (m *Manager) Logout(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return tghelpers.ErrNoSender
	}
	if !private(c) {
		return nil
	}
	m.turns.interrupt(u.ID)
	unlock := m.locks.lock(u.ID)
	defer unlock()

	ctx := tghelpers.BuildContext(c)
	if s, ok := m.machine.Lookup(u.ID); ok {
		m.machine.Discard(u.ID, state.ReasonLogout)
		m.editStatus(ctx, s.Data, textCancelled)
	}
	if err := m.opts.Sessions.Delete(ctx, u.ID); err != nil {
		return err
	}
	logger.Info(ctx, "login", "login.logout", slog.String("status", "ok"))
	return tghelpers.SendHTML(c, textLoggedOut, keyboard.RemoveKeyboard())
}

func (m *Manager) onPhone(ctx context.Context, c tele.Context, userID int64, conv *Conversation) error {
	phone, ok := NormalizePhone(c.Text())
	if !ok {
		m.setStep(ctx, conv, StepPhone, textBadPhone)
		return nil
	}

	auth := m.opts.Dial()
	conv.attach(auth)
	m.machine.Touch(userID)
	m.setStep(ctx, conv, StepPhone, textConnecting)

	start := time.Now()
	stop := m.animate(ctx, conv, "Connecting")
	defer stop()
	var hash string
	err := netutil.Retry(ctx, m.policy(ctx, StepPhone), auth.Connect)
	if err == nil {
		err = netutil.Retry(ctx, m.policy(ctx, StepPhone), func(ctx context.Context) error {
			var sendErr error
			hash, sendErr = auth.SendCode(ctx, phone)
			return sendErr
		})
	}
	stop()
	if interrupted(ctx) {
		return nil
	}

	if err != nil {
		switch {
		case errors.Is(err, netutil.ErrRetriesExhausted):
			m.terminate(ctx, userID, conv, StepPhone, textRetryFailed, err)
		case errors.Is(err, mtproto.ErrPhoneInvalid):
			m.terminate(ctx, userID, conv, StepPhone, textPhoneInvalid, err)
		default:
			m.terminate(ctx, userID, conv, StepPhone, m.genericFailure(err), err)
		}
		return nil
	}

	conv.Phone = phone
	conv.CodeHash = hash
	m.machine.Advance(userID, StepCode)
	m.logStep(ctx, StepCode, start, nil)
	m.setStep(ctx, conv, StepCode, textAskCode)
	return nil
}

func (m *Manager) onCode(ctx context.Context, c tele.Context, userID int64, conv *Conversation) error {
	code, ok := NormalizeCode(c.Text())
	if !ok {
		m.setStep(ctx, conv, StepCode, textBadCode)
		return nil
	}
	auth := conv.Auth()
	if auth == nil {
		m.terminate(ctx, userID, conv, StepCode, m.genericFailure(errNoAuth), errNoAuth)
		return nil
	}
	m.setStep(ctx, conv, StepCode, textVerifying)

	start := time.Now()
	stop := m.animate(ctx, conv, "Verifying")
	defer stop()
	err := netutil.Retry(ctx, m.policy(ctx, StepCode), func(ctx context.Context) error {
		return auth.SignIn(ctx, conv.Phone, conv.CodeHash, code)
	})
	stop()
	if interrupted(ctx) {
		return nil
	}

	switch {
	case err == nil:
		m.finalize(ctx, c, userID, conv, StepCode, start)
	case errors.Is(err, netutil.ErrRetriesExhausted):
		m.terminate(ctx, userID, conv, StepCode, textRetryFailed, err)
	case errors.Is(err, mtproto.ErrPasswordNeeded):
		m.machine.Advance(userID, StepPassword)
		m.logStep(ctx, StepPassword, start, nil)
		m.setStep(ctx, conv, StepPassword, textAskPassword)
	case errors.Is(err, mtproto.ErrCodeInvalid):
		m.machine.Touch(userID)
		m.logStep(ctx, StepCode, start, err)
		m.setStep(ctx, conv, StepCode, textCodeInvalid)
	case errors.Is(err, mtproto.ErrCodeExpired):
		m.terminate(ctx, userID, conv, StepCode, textCodeExpired, err)
	default:
		m.terminate(ctx, userID, conv, StepCode, m.genericFailure(err), err)
	}
	return nil
}

func (m *Manager) onPassword(ctx context.Context, c tele.Context, userID int64, conv *Conversation) error {
	password := c.Text()
	if password == "" {
		m.setStep(ctx, conv, StepPassword, textAskPassword)
		return nil
	}
	if msg := c.Message(); msg != nil {
		if msgr := m.messenger(); msgr != nil {
			if err := msgr.Delete(msg); err != nil {
				logger.Warn(ctx, "login", "tg.delete",
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
			}
		}
	}
	auth := conv.Auth()
	if auth == nil {
		m.terminate(ctx, userID, conv, StepPassword, m.genericFailure(errNoAuth), errNoAuth)
		return nil
	}
	m.setStep(ctx, conv, StepPassword, textChecking)

	start := time.Now()
	stop := m.animate(ctx, conv, "Checking")
	defer stop()
	err := netutil.Retry(ctx, m.policy(ctx, StepPassword), func(ctx context.Context) error {
		return auth.CheckPassword(ctx, password)
	})
	stop()
	if interrupted(ctx) {
		return nil
	}

	switch {
	case err == nil:
		m.finalize(ctx, c, userID, conv, StepPassword, start)
	case errors.Is(err, netutil.ErrRetriesExhausted):
		m.terminate(ctx, userID, conv, StepPassword, textRetryFailed, err)
	case errors.Is(err, mtproto.ErrPasswordInvalid):
		m.machine.Touch(userID)
		m.logStep(ctx, StepPassword, start, err)
		m.setStep(ctx, conv, StepPassword, textBadPassword)
	default:
		m.terminate(ctx, userID, conv, StepPassword, m.genericFailure(err), err)
	}
	return nil
}

var errNoAuth = errors.New("login: no transient session attached")

// finalize exports and stores the session, then ends the conversation.
func (m *Manager) finalize(ctx context.Context, c tele.Context, userID int64, conv *Conversation, step state.State, start time.Time) {
	auth := conv.Auth()
	if auth == nil {
		m.terminate(ctx, userID, conv, step, textSaveFailed, errNoAuth)
		return
	}
	session, err := auth.ExportSession(ctx)
	_ = conv.release()
	if err == nil {
		err = m.opts.Sessions.Set(ctx, userID, session)
	}
	if err != nil {
		m.terminate(ctx, userID, conv, step, textSaveFailed, err)
		return
	}

	m.machine.Discard(userID, state.ReasonCompleted)
	m.logStep(ctx, stepComplete, start, nil)
	m.setStep(ctx, conv, stepComplete, textLoggedIn)
	if err := tghelpers.SendHTML(c, textKeyboardGone, keyboard.RemoveKeyboard()); err != nil {
		logger.Warn(ctx, "login", "tg.send", slog.String("err", err.Error()))
	}
}

// terminate discards the conversation and shows text on the status message.
func (m *Manager) terminate(ctx context.Context, userID int64, conv *Conversation, step state.State, text string, cause error) {
	m.machine.Discard(userID, state.ReasonFailed)
	m.setStep(ctx, conv, step, text)
	logger.Warn(ctx, "login", "login.fail",
		slog.String("status", "fail"),
		slog.String("step", string(step)),
		slog.String("err", logger.SanitizeLimit(cause.Error(), 256)),
	)
	if msgr := m.messenger(); msgr != nil && conv.Status.ChatID != 0 {
		if _, err := msgr.Send(&tele.Chat{ID: conv.Status.ChatID}, textKeyboardGone, keyboard.RemoveKeyboard()); err != nil {
			logger.Warn(ctx, "login", "tg.send", slog.String("err", err.Error()))
		}
	}
}

func (m *Manager) genericFailure(err error) string {
	if !m.opts.ExposeErrors {
		return "<b>❌ Something went wrong.</b> Please try /login again."
	}
	return "<b>❌ Something went wrong:</b> " + format.Escape(logger.SanitizeLimit(err.Error(), 200)) + "\n\nPlease try /login again."
}

func (m *Manager) policy(ctx context.Context, step state.State) netutil.RetryPolicy {
	return netutil.RetryPolicy{
		MaxRetries: m.opts.MaxRetries,
		MaxWait:    m.opts.MaxFloodWait,
		Backoff:    mtproto.AsFloodWait,
		Sleep:      m.opts.Sleep,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.Warn(ctx, "login", "login.retry",
				slog.String("status", "retry"),
				slog.String("step", string(step)),
				slog.Int("attempts", attempt),
				slog.Duration("wait", wait),
			)
		},
	}
}

func (m *Manager) logStep(ctx context.Context, step state.State, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("step", string(step)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.Info(ctx, "login", "login.step", attrs...)
}

// onDiscard closes the transient session of every conversation leaving the store.
func (m *Manager) onDiscard(userID int64, s state.Session[*Conversation], reason state.Reason) {
	conv := s.Data
	if conv == nil {
		return
	}
	ctx := logger.WithAttempt(logger.WithUpdateMeta(logger.Background(), 0, userID, conv.Status.ChatID), conv.Attempt)
	if err := conv.release(); err != nil {
		logger.Warn(ctx, "login", "mtproto.disconnect",
			slog.String("status", "fail"),
			slog.String("reason", string(reason)),
			slog.String("err", err.Error()),
		)
	}
	if reason == state.ReasonExpired {
		m.editStatus(ctx, conv, textExpired)
		logger.Info(ctx, "login", "login.expire", slog.String("status", "expired"))
	}
}
