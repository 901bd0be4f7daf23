package login

import (
	"errors"

	tg "github.com/m3rciful/sessionbot/core/telegram"
	"github.com/m3rciful/sessionbot/core/telegram/commands"
)

// Register adds the login commands to reg.
func (m *Manager) Register(reg *tg.Registry) error {
	return errors.Join(
		reg.RegisterCommand("/login", commands.Command{
			Handler:     m.Start,
			Description: "Log in with your Telegram account",
		}),
		reg.RegisterCommand("/logout", commands.Command{
			Handler:     m.Logout,
			Description: "Remove the saved session",
		}),
		reg.RegisterCommand("/cancel", commands.Command{
			Handler:     m.Cancel,
			Description: "Cancel the login in progress",
			Aliases:     []string{"cancellogin"},
		}),
	)
}
