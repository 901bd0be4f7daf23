// Package app assembles the session bot from the core runtime and the
// login, settings and storage packages.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/sessionbot/app/config"
	"github.com/m3rciful/sessionbot/app/login"
	"github.com/m3rciful/sessionbot/app/mtproto"
	"github.com/m3rciful/sessionbot/app/settings"
	"github.com/m3rciful/sessionbot/app/storage"
	"github.com/m3rciful/sessionbot/core/bootstrap"
	corecmd "github.com/m3rciful/sessionbot/core/cmd"
	"github.com/m3rciful/sessionbot/core/logger"
	tg "github.com/m3rciful/sessionbot/core/telegram"
	"github.com/m3rciful/sessionbot/core/telegram/router"
	"github.com/m3rciful/sessionbot/core/telegram/state"
	"github.com/m3rciful/sessionbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// App holds the wired components of one bot process.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	registry   *tg.Registry
	login      *login.Manager
	loginStore *state.TTLStore[*login.Conversation]
	settings   *settings.Presenter
	fallbacks  ui.FallbackProvider
}

// Bootstrap prepares infrastructure and returns the app for the shared runner.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{PremiumSeeder(cfg.PremiumUsers)},
		},
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// New wires stores, the login manager and the settings presenter around db.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("app: config and database are required")
	}

	factory, err := mtproto.NewFactory(mtproto.Options{
		AppID:          cfg.MTProto.AppID,
		AppHash:        cfg.MTProto.AppHash,
		ConnectTimeout: cfg.MTProto.ConnectTimeout,
		Logger:         logger.Zap("mtproto"),
	})
	if err != nil {
		return nil, err
	}

	store, err := state.NewTTLStore[*login.Conversation](cfg.Login.MaxSessions, cfg.Login.IdleTimeout)
	if err != nil {
		return nil, err
	}

	mgr, err := login.NewManager(login.Options{
		Sessions:         storage.NewSessions(db),
		Dial:             func() login.AuthSession { return factory.New() },
		Store:            store,
		MaxRetries:       cfg.Login.MaxRetries,
		MaxFloodWait:     cfg.Login.MaxFloodWait,
		FrameInterval:    cfg.Login.FrameInterval,
		DisableAnimation: cfg.Login.DisableAnimation,
		ExposeErrors:     cfg.Login.ExposeErrors,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	reg := tg.NewRegistry()
	presenter, err := settings.New(settings.Options{
		Profiles:  storage.NewUsers(db),
		FreeDaily: cfg.Limits.FreeDaily,
		Commands:  func() []tele.Command { return reg.ListCommands(true) },
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	if err := errors.Join(mgr.Register(reg), presenter.Register(reg)); err != nil {
		store.Close()
		return nil, err
	}

	fallbacks := ui.StaticFallbacks{
		Text:     "🤔 I don't understand that. Send /help to see what I can do.",
		Document: "📎 Files are not accepted here. Send /help to see what I can do.",
		Callback: "This button has expired.",
	}
	reg.SetCallbackNotFound(fallbacks.UnknownCallback())

	return &App{
		cfg:        cfg,
		db:         db,
		registry:   reg,
		login:      mgr,
		loginStore: store,
		settings:   presenter,
		fallbacks:  fallbacks,
	}, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := &a.cfg.Config

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{
		NotFound: a.fallbacks.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a.login, a.registry, router.TextOptions{
		UnknownText:     a.fallbacks.UnknownText(),
		UnknownDocument: a.fallbacks.UnknownDocument(),
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.login.SetMessenger(rt.Bot)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			a.loginStore.Close()
			if err := a.db.Close(); err != nil {
				logger.DB.Warn("database close failed",
					slog.String("event", "db.close"),
					slog.String("err", err.Error()),
				)
				return err
			}
			return nil
		},
	}, nil
}
