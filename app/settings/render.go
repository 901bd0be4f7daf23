package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/sessionbot/app/storage"
	"github.com/m3rciful/sessionbot/core/telegram/format"
	"github.com/m3rciful/sessionbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback tokens of the settings panel.
const (
	BtnCommands = "cmd_list_btn"
	BtnStats    = "user_stats_btn"
	BtnDumpChat = "dump_chat_btn"
	BtnThumb    = "thumb_btn"
	BtnCaption  = "caption_btn"
	BtnBack     = "settings_back_btn"
	BtnClose    = "close_btn"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// Panel is a rendered message body with its inline keyboard.
type Panel struct {
	Text   string
	Markup *tele.ReplyMarkup
}

func mainKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📜 Commands List", Unique: BtnCommands}},
		[]keyboard.InlineBtn{{Text: "📊 My Usage Stats", Unique: BtnStats}},
		[]keyboard.InlineBtn{{Text: "🗑 Dump Chat", Unique: BtnDumpChat}},
		[]keyboard.InlineBtn{{Text: "🖼 Thumbnail", Unique: BtnThumb}, {Text: "📝 Caption", Unique: BtnCaption}},
		[]keyboard.InlineBtn{{Text: "❌ Close", Unique: BtnClose}},
	)
}

func backCloseKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "⬅️ Back", Unique: BtnBack}, {Text: "❌ Close", Unique: BtnClose}},
	)
}

// MainMenu renders the settings entry panel.
func MainMenu(p storage.Profile, premium bool) Panel {
	badge := "👤 Free User"
	if premium {
		badge = "💎 Premium Member"
	}
	text := fmt.Sprintf("<b>⚙️ Settings Panel</b>\n%s\n<b>Account:</b> %s\n<b>User ID:</b> %s\n\n<i>Customize your experience below.</i>",
		divider, badge, format.ID(p.ID))
	return Panel{Text: text, Markup: mainKeyboard()}
}

// CommandsText lists cmds as a reference block.
func CommandsText(cmds []tele.Command) string {
	var b strings.Builder
	b.WriteString("<b>📜 Available Commands</b>\n\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "%s - %s\n", format.Escape(c.Text), format.Escape(c.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

// CommandsPanel renders the commands reference with navigation.
func CommandsPanel(cmds []tele.Command) Panel {
	return Panel{Text: CommandsText(cmds), Markup: backCloseKeyboard()}
}

// StatsPanel renders the plan and today's usage.
func StatsPanel(p storage.Profile, premium bool, freeDaily int, now time.Time) Panel {
	usage := p.UsageOn(now)
	plan, limit, today := "👤 Free", fmt.Sprintf("%d files", freeDaily), fmt.Sprintf("%d/%d", usage, freeDaily)
	if premium {
		plan, limit, today = "💎 Premium", "♾️ Unlimited", fmt.Sprintf("%d (ignored)", usage)
	}
	text := fmt.Sprintf("<b>📊 My Usage Statistics</b>\n\n<b>Plan:</b> %s\n<b>Daily Limit:</b> %s\n<b>Today's Usage:</b> %s",
		plan, limit, format.Code(today))
	if premium && p.PremiumUntil != nil {
		text += "\n<b>Premium until:</b> " + format.Code(p.PremiumUntil.UTC().Format("2006-01-02"))
	}
	return Panel{Text: text, Markup: backCloseKeyboard()}
}

// DumpChatPanel shows where files are forwarded.
func DumpChatPanel(p storage.Profile) Panel {
	current := "<i>not set</i>"
	if id := format.Or(p.DumpChatID, 0); id != 0 {
		current = format.ID(id)
	}
	text := fmt.Sprintf("<b>🗑 Dump Chat</b>\n\n<b>Current:</b> %s\n\n/setchat &lt;chat_id&gt; - set the chat\n/delchat - remove it", current)
	return Panel{Text: text, Markup: backCloseKeyboard()}
}

// ThumbnailPanel shows whether a custom thumbnail is stored.
func ThumbnailPanel(p storage.Profile) Panel {
	current := "<i>default</i>"
	if format.Or(p.Thumbnail, "") != "" {
		current = "✅ custom thumbnail saved"
	}
	text := fmt.Sprintf("<b>🖼 Thumbnail</b>\n\n<b>Current:</b> %s\n\n/setthumb - reply to a photo to use it\n/delthumb - restore the default", current)
	return Panel{Text: text, Markup: backCloseKeyboard()}
}

// CaptionPanel shows the stored caption.
func CaptionPanel(p storage.Profile) Panel {
	current := "<i>not set</i>"
	if caption := format.Or(p.Caption, ""); caption != "" {
		current = format.Code(caption)
	}
	text := fmt.Sprintf("<b>📝 Caption</b>\n\n<b>Current:</b> %s\n\n/setcaption &lt;text&gt; - set the caption\n/delcaption - remove it", current)
	return Panel{Text: text, Markup: backCloseKeyboard()}
}
