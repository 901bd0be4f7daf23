package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/sessionbot/core/logger"
	"github.com/m3rciful/sessionbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// stepComplete is only used for rendering.
const stepComplete state.State = "login.complete"

var stepTrail = map[state.State]string{
	StepPhone:    "🟢 Phone Number → 🔵 Code → 🔵 Password",
	StepCode:     "✅ Phone Number → 🟢 Code → 🔵 Password",
	StepPassword: "✅ Phone Number → ✅ Code → 🟢 Password",
	stepComplete: "✅ Phone Number → ✅ Code → ✅ Password",
}

var stepPercent = map[state.State]int{
	StepPhone:    30,
	StepCode:     60,
	StepPassword: 80,
	stepComplete: 100,
}

var loadingDots = []string{"•••", "••○", "•○○", "○○○", "○○•", "○••"}

// Progress returns the percentage shown for step.
func Progress(step state.State) int {
	return stepPercent[step]
}

func progressBar(percent int) string {
	filled := percent / 10
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled) + fmt.Sprintf(" %d%%", percent)
}

// renderStatus builds the status message body for step with a detail block.
func renderStatus(step state.State, detail string) string {
	trail, ok := stepTrail[step]
	if !ok {
		trail = stepTrail[StepPhone]
	}
	return fmt.Sprintf("<b>Progress: [%s]</b>\n<i>%s</i>\n\n%s", progressBar(Progress(step)), trail, detail)
}

func statusOptions() *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
}

// editStatus rewrites the status message. Failures are logged and ignored.
func (m *Manager) editStatus(ctx context.Context, conv *Conversation, text string) {
	msgr := m.messenger()
	if msgr == nil || conv == nil || conv.Status.MessageID == "" {
		return
	}
	if _, err := msgr.Edit(&conv.Status, text, statusOptions()); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		logger.Warn(ctx, "login", "tg.edit",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (m *Manager) setStep(ctx context.Context, conv *Conversation, step state.State, detail string) {
	m.editStatus(ctx, conv, renderStatus(step, detail))
}

// animate edits the status message with a loading frame every FrameInterval
// until the returned stop func is called. stop waits for the last edit.
func (m *Manager) animate(ctx context.Context, conv *Conversation, label string) (stop func()) {
	if m.opts.DisableAnimation || m.messenger() == nil {
		return func() {}
	}
	actx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(m.opts.FrameInterval)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-actx.Done():
				return
			case <-ticker.C:
				dots := loadingDots[frame%len(loadingDots)]
				m.editStatus(actx, conv, fmt.Sprintf("<b>🔄 %s %s</b>", label, dots))
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
