package middleware

import (
	"log/slog"
	"time"

	"github.com/m3rciful/sessionbot/core/logger"
	"github.com/m3rciful/sessionbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates remembers processed update ids so nested LoggerMiddleware
// applications log one receipt line per update.
var recentUpdates = mustSeenCache[int](4096, 10*time.Second)

func alreadyLogged(updateID int) bool {
	if _, ok := recentUpdates.Get(updateID); ok {
		return true
	}
	recentUpdates.Set(updateID, struct{}{})
	return false
}

// LoggerMiddleware logs a single receipt line per update and sets rid.
// It deduplicates by update_id to prevent double logging when middleware is applied on multiple branches.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()
		_, chatID, userID := tghelpers.Meta(c)

		ctx := tghelpers.ResetContext(c, "")
		rid := logger.RIDFrom(ctx)
		c.Set("update_start", time.Now())

		// Deduplicate update receipt logs
		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chatID != 0 {
				attrs = append(attrs, slog.Int64("chat_id", chatID))
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user != nil && user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user != nil && user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}

			// Enrich by kind
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				// message text may carry a phone number, code or password
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.Int("payload_len", len([]rune(t))))
				}
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
