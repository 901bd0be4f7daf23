package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/m3rciful/sessionbot/core/logger"
	"github.com/m3rciful/sessionbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrInvalidRegistration is returned for commands or callbacks that cannot be routed.
var ErrInvalidRegistration = errors.New("invalid registration")

// Registry holds bot commands and callbacks.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry with a default callback fallback.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

func skipRegistration(event, name, reason string) error {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event,
		slog.String("name", name),
		slog.String("reason", reason),
	)
	return fmt.Errorf("%w: %s: %s", ErrInvalidRegistration, name, reason)
}

// RegisterCommand adds a command under its canonical name. Names and aliases
// must be unique across the registry.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if r == nil {
		return ErrInvalidRegistration
	}
	key := commands.Name(name)
	if !commands.Valid(key) || name[0] != '/' {
		return skipRegistration("register.command.skip", name, "bad_name")
	}
	if cmd.Handler == nil || cmd.Description == "" {
		return skipRegistration("register.command.skip", name, "incomplete")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(key) {
		return skipRegistration("register.command.duplicate", key, "duplicate")
	}
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		alias := commands.Name(a)
		if !commands.Valid(alias) || alias == key || r.taken(alias) {
			return skipRegistration("register.command.skip", a, "bad_alias")
		}
		aliases = append(aliases, alias)
	}
	cmd.Aliases = aliases
	r.commands[key] = cmd
	for _, alias := range aliases {
		r.aliases[alias] = key
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	_, cmd := r.commands[name]
	_, alias := r.aliases[name]
	return cmd || alias
}

// ListCommands returns commands sorted by name, optionally without hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a name or alias, with or without the leading slash,
// to the canonical key and its metadata.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key := commands.Name(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}

// Commands returns a snapshot of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback adds a callback handler mapped to its key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		return skipRegistration("register.callback.skip", key, "incomplete")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return skipRegistration("register.callback.duplicate", key, "duplicate")
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted keys (for diagnostics).
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// menus splits the registry into the public menu and the admin-only extras.
func (r *Registry) menus() (public, admin []tele.Command) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, meta := range r.commands {
		entry := commands.MenuEntry(name, meta.Description)
		switch {
		case meta.AdminOnly:
			admin = append(admin, entry)
		case !meta.Hidden:
			public = append(public, entry)
		}
	}
	byText := func(list []tele.Command) {
		sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	}
	byText(public)
	byText(admin)
	return public, admin
}

// commandSetter is the part of *tele.Bot used to publish menus.
type commandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands to the Telegram menu. When
// adminID is set, the admin's private chat also gets the admin-only commands.
func SetupCommands(bot commandSetter, reg *Registry, adminID int64) {
	public, admin := reg.menus()
	if err := bot.SetCommands(public); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("scope", "default"),
			slog.String("err", err.Error()),
		)
	}
	if adminID == 0 || len(admin) == 0 {
		return
	}
	scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: adminID}
	if err := bot.SetCommands(append(public, admin...), scope); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("scope", "admin"),
			slog.String("err", err.Error()),
		)
	}
}
