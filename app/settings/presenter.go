// Package settings renders the per-user settings panel and the commands that edit it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/sessionbot/app/storage"
	"github.com/m3rciful/sessionbot/core/logger"
	tg "github.com/m3rciful/sessionbot/core/telegram"
	"github.com/m3rciful/sessionbot/core/telegram/commands"
	"github.com/m3rciful/sessionbot/core/telegram/format"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const maxCaptionLen = 1024

// Profiles is the user-profile store used by the presenter.
type Profiles interface {
	Ensure(ctx context.Context, userID int64, name string) (storage.Profile, error)
	SetDumpChat(ctx context.Context, userID int64, chatID *int64) error
	SetCaption(ctx context.Context, userID int64, caption *string) error
	SetThumbnail(ctx context.Context, userID int64, fileID *string) error
	SetPremium(ctx context.Context, userID int64, until *time.Time) error
	RevokePremium(ctx context.Context, userID int64) error
}

// Options configure a Presenter.
type Options struct {
	Profiles  Profiles
	FreeDaily int
	// Commands lists the public commands shown by /help and the commands panel.
	Commands func() []tele.Command
	Now      func() time.Time
}

// Presenter holds no per-user state; every update reloads the profile.
type Presenter struct {
	opts Options
}

// New returns a Presenter.
func New(opts Options) (*Presenter, error) {
	if opts.Profiles == nil {
		return nil, fmt.Errorf("settings: profile store is required")
	}
	if opts.FreeDaily <= 0 {
		opts.FreeDaily = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Commands == nil {
		opts.Commands = func() []tele.Command { return nil }
	}
	return &Presenter{opts: opts}, nil
}

// Register wires commands and panel callbacks into reg.
func (p *Presenter) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":      {Handler: p.Start, Description: "Start the bot"},
		"/help":       {Handler: p.Help, Description: "Show available commands"},
		"/settings":   {Handler: p.Settings, Description: "Open the settings panel"},
		"/setchat":    {Handler: p.SetChat, Description: "Set the dump chat"},
		"/delchat":    {Handler: p.DelChat, Description: "Remove the dump chat"},
		"/setcaption": {Handler: p.SetCaption, Description: "Set a custom caption"},
		"/delcaption": {Handler: p.DelCaption, Description: "Remove the custom caption"},
		"/setthumb":   {Handler: p.SetThumb, Description: "Reply to a photo to set the thumbnail"},
		"/delthumb":   {Handler: p.DelThumb, Description: "Remove the custom thumbnail"},
		"/premium":    {Handler: p.Premium, Description: "Grant or revoke premium", AdminOnly: true, Hidden: true},
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(name, cmd))
	}

	callbacks := map[string]tele.HandlerFunc{
		BtnCommands: p.onCommands,
		BtnStats:    p.onStats,
		BtnDumpChat: p.onDumpChat,
		BtnThumb:    p.onThumb,
		BtnCaption:  p.onCaption,
		BtnBack:     p.onBack,
		BtnClose:    p.onClose,
	}
	for key, h := range callbacks {
		if err := reg.RegisterCallback(key, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Presenter) profile(c tele.Context) (context.Context, storage.Profile, error) {
	ctx := tghelpers.BuildContext(c)
	prof, err := tghelpers.CurrentUser[storage.Profile](ctx, p.opts.Profiles, c)
	return ctx, prof, err
}

func (p *Presenter) mainMenu(c tele.Context) (Panel, error) {
	_, prof, err := p.profile(c)
	if err != nil {
		return Panel{}, err
	}
	return MainMenu(prof, prof.IsPremium(p.opts.Now())), nil
}

// Start registers the user and greets them.
func (p *Presenter) Start(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	logger.Info(ctx, "settings", "user.start", slog.String("status", "ok"))
	name := prof.Name
	if name == "" {
		name = "there"
	}
	text := format.Bold("👋 Hi "+name+"!") +
		"\n\nUse /login to connect your Telegram account and /settings to configure the bot.\nSend /help for the full command list."
	return tghelpers.SendHTML(c, text)
}

// Help sends the commands reference.
func (p *Presenter) Help(c tele.Context) error {
	return tghelpers.SendHTML(c, CommandsText(p.opts.Commands()))
}

// Settings sends the main menu.
func (p *Presenter) Settings(c tele.Context) error {
	panel, err := p.mainMenu(c)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, panel.Text, panel.Markup)
}

func (p *Presenter) show(c tele.Context, render func(storage.Profile, bool) Panel) error {
	_, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	panel := render(prof, prof.IsPremium(p.opts.Now()))
	return tghelpers.EditHTML(c, panel.Text, panel.Markup)
}

func (p *Presenter) onBack(c tele.Context) error {
	return p.show(c, MainMenu)
}

func (p *Presenter) onCommands(c tele.Context) error {
	panel := CommandsPanel(p.opts.Commands())
	return tghelpers.EditHTML(c, panel.Text, panel.Markup)
}

func (p *Presenter) onStats(c tele.Context) error {
	return p.show(c, func(prof storage.Profile, premium bool) Panel {
		return StatsPanel(prof, premium, p.opts.FreeDaily, p.opts.Now())
	})
}

func (p *Presenter) onDumpChat(c tele.Context) error {
	return p.show(c, func(prof storage.Profile, _ bool) Panel { return DumpChatPanel(prof) })
}

func (p *Presenter) onThumb(c tele.Context) error {
	return p.show(c, func(prof storage.Profile, _ bool) Panel { return ThumbnailPanel(prof) })
}

func (p *Presenter) onCaption(c tele.Context) error {
	return p.show(c, func(prof storage.Profile, _ bool) Panel { return CaptionPanel(prof) })
}

func (p *Presenter) onClose(c tele.Context) error {
	return c.Delete()
}

func payload(c tele.Context) string {
	if msg := c.Message(); msg != nil {
		return strings.TrimSpace(msg.Payload)
	}
	return ""
}

// SetChat handles /setchat <chat_id>.
func (p *Presenter) SetChat(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(payload(c), 10, 64)
	if err != nil || chatID == 0 {
		return tghelpers.SendHTML(c, "Usage: /setchat &lt;chat_id&gt;, e.g. <code>/setchat -1001234567890</code>")
	}
	if err := p.opts.Profiles.SetDumpChat(ctx, prof.ID, &chatID); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "✅ Dump chat set to "+format.ID(chatID))
}

// DelChat handles /delchat.
func (p *Presenter) DelChat(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	if err := p.opts.Profiles.SetDumpChat(ctx, prof.ID, nil); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "🗑 Dump chat removed.")
}

// SetCaption handles /setcaption <text>.
func (p *Presenter) SetCaption(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	caption := payload(c)
	if caption == "" {
		return tghelpers.SendHTML(c, "Usage: /setcaption &lt;text&gt;")
	}
	if len([]rune(caption)) > maxCaptionLen {
		return tghelpers.SendHTML(c, fmt.Sprintf("❌ Caption is too long (max %d characters).", maxCaptionLen))
	}
	if err := p.opts.Profiles.SetCaption(ctx, prof.ID, &caption); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "✅ Caption saved.")
}

// DelCaption handles /delcaption.
func (p *Presenter) DelCaption(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	if err := p.opts.Profiles.SetCaption(ctx, prof.ID, nil); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "🗑 Caption removed.")
}

// SetThumb handles /setthumb sent as a reply to a photo.
func (p *Presenter) SetThumb(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Photo == nil {
		return tghelpers.SendHTML(c, "Reply to a photo with /setthumb to use it as the thumbnail.")
	}
	fileID := msg.ReplyTo.Photo.FileID
	if err := p.opts.Profiles.SetThumbnail(ctx, prof.ID, &fileID); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "✅ Thumbnail saved.")
}

// DelThumb handles /delthumb.
func (p *Presenter) DelThumb(c tele.Context) error {
	ctx, prof, err := p.profile(c)
	if err != nil {
		return err
	}
	if err := p.opts.Profiles.SetThumbnail(ctx, prof.ID, nil); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "🗑 Thumbnail removed.")
}

// Premium handles the admin command /premium <user_id> <days|off>.
func (p *Presenter) Premium(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := strings.Fields(payload(c))
	if len(args) != 2 {
		return tghelpers.SendHTML(c, "Usage: /premium &lt;user_id&gt; &lt;days|off&gt;")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return tghelpers.SendHTML(c, "❌ Invalid user id.")
	}

	var reply string
	if strings.EqualFold(args[1], "off") {
		err = p.opts.Profiles.RevokePremium(ctx, userID)
		reply = "Premium revoked for " + format.ID(userID)
	} else {
		days, convErr := strconv.Atoi(args[1])
		if convErr != nil || days < 0 {
			return tghelpers.SendHTML(c, "❌ Days must be a non-negative number or <code>off</code>.")
		}
		var until *time.Time
		if days > 0 {
			t := p.opts.Now().Add(time.Duration(days) * 24 * time.Hour)
			until = &t
		}
		err = p.opts.Profiles.SetPremium(ctx, userID, until)
		reply = "💎 Premium granted to " + format.ID(userID)
		if until != nil {
			reply += " until " + format.Code(until.UTC().Format("2006-01-02"))
		}
	}
	if errors.Is(err, storage.ErrUserNotFound) {
		return tghelpers.SendHTML(c, "❌ Unknown user "+format.ID(userID))
	}
	if err != nil {
		return err
	}
	logger.Info(ctx, "settings", "premium.update",
		slog.String("status", "ok"),
		slog.Int64("target_id", userID),
		slog.String("value", args[1]),
	)
	return tghelpers.SendHTML(c, reply)
}
