package router

import (
	"log/slog"

	tg "github.com/m3rciful/sessionbot/core/telegram"
	"github.com/m3rciful/sessionbot/core/telegram/callbacks"
	"github.com/m3rciful/sessionbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers presses whose key is not registered. It must answer
	// the callback itself; the registry fallback is used when nil.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Known callbacks are answered before their handler runs so the client stops
// its spinner even when the handler only edits the message.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	notFound := func() tele.HandlerFunc {
		if opts.NotFound != nil {
			return opts.NotFound
		}
		return reg.CallbackNotFound()
	}

	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.CallbackKey(c)
		extras := []slog.Attr{slog.String("cb_key", key)}

		h, ok := reg.GetCallback(key)
		if !ok {
			extras = append(extras, slog.String("reason", "not_found"))
			h = notFound()
		} else {
			_ = c.Respond()
		}
		return newSummary("callback."+normalizeHandlerName(key), extras...).run(c, func() error {
			if h == nil {
				return c.Respond()
			}
			return h(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
