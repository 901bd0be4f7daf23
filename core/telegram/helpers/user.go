package helpers

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrNoSender is returned for updates that carry no user.
var ErrNoSender = errors.New("update has no sender")

// ProfileLoader resolves a Telegram user to a stored profile, creating it on first contact.
type ProfileLoader[T any] interface {
	Ensure(ctx context.Context, userID int64, name string) (T, error)
}

// CurrentUser loads the profile of the user behind c.
func CurrentUser[T any](ctx context.Context, loader ProfileLoader[T], c tele.Context) (T, error) {
	var zero T
	u := c.Sender()
	if u == nil {
		return zero, ErrNoSender
	}
	return loader.Ensure(ctx, u.ID, DisplayName(u))
}

// DisplayName joins first and last name, falling back to the username.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
