package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/sessionbot/core/config"
	"github.com/m3rciful/sessionbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

const slowDownText = "⏳ Slow down a little."

// answerLimited tells a throttled user why a button press did nothing.
// Throttled messages are dropped silently.
func answerLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: slowDownText})
	}
	return nil
}

func rateLimit(cfg coreconfig.RateLimitConfig, onLimited tele.HandlerFunc) (Middleware, bool) {
	interval := time.Duration(cfg.IntervalMS) * time.Millisecond
	if interval <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.ExcludeUpdates))
	for _, kind := range cfg.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	if onLimited == nil {
		onLimited = answerLimited
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  interval,
			Exclude:   exclude,
			OnLimited: onLimited,
		}),
	}, true
}

// DefaultMiddlewares builds the global chain: panic recovery, optional
// per-user throttling, receipt logging and reply counters, in that order.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil {
		if rl, ok := rateLimit(cfg.RateLimit, onLimited); ok {
			mws = append(mws, rl)
		}
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}
