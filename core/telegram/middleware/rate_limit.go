package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/maypok86/otter"

	"github.com/m3rciful/sessionbot/core/logger"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const rateLimitCapacity = 100_000

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// newSeenCache builds a set whose members vanish ttl after insertion.
func newSeenCache[K comparable](capacity int, ttl time.Duration) (otter.Cache[K, struct{}], error) {
	c, err := otter.MustBuilder[K, struct{}](capacity).WithTTL(ttl).Build()
	if err != nil {
		return c, fmt.Errorf("build seen cache: %w", err)
	}
	return c, nil
}

func mustSeenCache[K comparable](capacity int, ttl time.Duration) otter.Cache[K, struct{}] {
	c, err := newSeenCache[K](capacity, ttl)
	if err != nil {
		panic(err)
	}
	return c
}

// UpdateKind classifies an update the way rate_limit.exclude_updates names it.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user. A user is remembered for Interval after
// an accepted update; anything arriving meanwhile is dropped.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	seen := mustSeenCache[int64](rateLimitCapacity, opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}

			if _, limited := seen.Get(user.ID); limited {
				logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
					slog.String("status", "rate_limited"),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			seen.Set(user.ID, struct{}{})
			return next(c)
		}
	}
}
