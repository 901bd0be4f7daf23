package router

import (
	"log/slog"

	"github.com/m3rciful/sessionbot/core/logger"
	tg "github.com/m3rciful/sessionbot/core/telegram"
	"github.com/m3rciful/sessionbot/core/telegram/commands"
	"github.com/m3rciful/sessionbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := wrapCommand(cmd, def, adminOpts)
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		// aliases are stored in canonical "/name" form by the registry
		for _, alias := range def.Aliases {
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

func wrapCommand(name string, def commands.Command, adminOpts middleware.AdminOptions) tele.HandlerFunc {
	inner := def.Handler
	if def.AdminOnly {
		inner = middleware.AdminOnlyMiddleware(adminOpts)(inner)
	}
	h := func(c tele.Context) error {
		return newSummary(name).run(c, func() error { return inner(c) })
	}
	return middleware.LoggerMiddleware(middleware.RecoverMiddleware(h))
}
