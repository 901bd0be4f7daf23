// Package commands describes bot commands and the names Telegram accepts for them.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands reject everyone but the configured admin.
	AdminOnly bool
	// Hidden commands are routed but left out of menus and help panels.
	Hidden  bool
	Aliases []string
}

// Name returns the canonical "/name" form of s. A trailing bot mention
// ("/login@SessionBot") is dropped and the result is lower-cased.
func Name(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "/" {
		return ""
	}
	if s[0] != '/' {
		s = "/" + s
	}
	return s
}

// Valid reports whether a canonical name fits Telegram's rules:
// 1-32 characters of a-z, 0-9 or underscore after the slash.
func Valid(name string) bool {
	body, ok := strings.CutPrefix(name, "/")
	if !ok || body == "" || len(body) > 32 {
		return false
	}
	for _, r := range body {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// MenuEntry converts a canonical name into the bare form used by setMyCommands.
func MenuEntry(name, description string) tele.Command {
	return tele.Command{Text: strings.TrimPrefix(name, "/"), Description: description}
}
