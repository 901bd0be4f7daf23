package ui

import (
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected documents.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// StaticFallbacks answers unmatched updates with fixed HTML texts.
// An empty text leaves that kind of update unanswered.
type StaticFallbacks struct {
	Text     string
	Document string
	Callback string
}

func (f StaticFallbacks) UnknownText() tele.HandlerFunc {
	return reply(f.Text)
}

func (f StaticFallbacks) UnknownDocument() tele.HandlerFunc {
	return reply(f.Document)
}

// UnknownCallback shows the text as a callback alert.
func (f StaticFallbacks) UnknownCallback() tele.HandlerFunc {
	if f.Callback == "" {
		return nil
	}
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: f.Callback})
	}
}

func reply(text string) tele.HandlerFunc {
	if text == "" {
		return nil
	}
	return func(c tele.Context) error {
		return tghelpers.SendHTML(c, text)
	}
}
