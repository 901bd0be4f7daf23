package router

import (
	tg "github.com/m3rciful/sessionbot/core/telegram"
	"github.com/m3rciful/sessionbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a conversation manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for plain text and documents. Text from a user
// with an active conversation in a private chat reaches the FSM first;
// otherwise text naming a command without its slash runs that command, and
// the rest hits the fallbacks. Documents never feed a conversation.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if inConversation(fsm, c) {
			return newSummary("fsm").run(c, func() error { return fsm.ManagerHandler(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return newSummary(key).run(c, func() error { return cmd.Handler(c) })
			}
		}
		return fallback(c, "unknown_text", opts.UnknownText)
	}

	document := func(c tele.Context) error {
		return fallback(c, "unexpected_document", opts.UnknownDocument)
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}

func fallback(c tele.Context, name string, h tele.HandlerFunc) error {
	s := newSummary(name)
	if h == nil {
		return s.skip(c)
	}
	return s.run(c, func() error { return h(c) })
}

func inConversation(fsm FSM, c tele.Context) bool {
	u, chat := c.Sender(), c.Chat()
	if fsm == nil || u == nil || chat == nil || chat.Type != tele.ChatPrivate {
		return false
	}
	return fsm.InProgress(u.ID)
}
