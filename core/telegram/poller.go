package telegram

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/sessionbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// allowedUpdates lists the update types the bot handles; everything else is
// filtered out by Telegram before it reaches the poller.
var allowedUpdates = []string{"message", "callback_query"}

// BuildPoller returns the webhook or long poller selected by cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
			AllowedUpdates: allowedUpdates,
		}
	}
	return &tele.LongPoller{
		Timeout:        longPollTimeout(cfg),
		AllowedUpdates: allowedUpdates,
	}
}

func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg.Telegram.LongPollTimeoutSeconds <= 0 {
		return defaultLongPollTimeout
	}
	return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
}
