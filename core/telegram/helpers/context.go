package helpers

import (
	"context"

	"github.com/m3rciful/sessionbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// Meta returns the update, chat and user ids carried by c; missing ones are zero.
func Meta(c tele.Context) (updateID int, chatID, userID int64) {
	updateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return updateID, chatID, userID
}

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// ResetContext builds a fresh request context for c under rid, replacing any
// stored one. An empty rid is derived from the update ids.
func ResetContext(c tele.Context, rid string) context.Context {
	updateID, chatID, userID := Meta(c)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	c.Set(ridKey, rid)

	ctx := logger.WithRID(logger.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// BuildContext returns the request context of c, creating it on first use.
// It carries the rid plus update, user and chat ids for service logging.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	rid, _ := c.Get(ridKey).(string)
	return ResetContext(c, rid)
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
