package format

import (
	"html"
	"strconv"
)

// Escape makes s safe for Telegram HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped s in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Code wraps escaped s in <code>.
func Code(s string) string {
	return "<code>" + Escape(s) + "</code>"
}

// ID renders a numeric id as inline code.
func ID(id int64) string {
	return Code(strconv.FormatInt(id, 10))
}
