package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/sessionbot/core/logger"
	tghelpers "github.com/m3rciful/sessionbot/core/telegram/helpers"
	"github.com/m3rciful/sessionbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary describes one handled update; it is logged once as handler.handled.
type summary struct {
	handler string
	start   time.Time
	// status overrides the ok/fail status derived from the handler error.
	status string
	extras []slog.Attr
}

func newSummary(handler string, extras ...slog.Attr) summary {
	return summary{handler: normalizeHandlerName(handler), start: time.Now(), extras: extras}
}

// run tags the request context with the handler, calls fn and logs the result.
func (s summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn()
	s.log(c, err)
	return err
}

// skip logs an update that no handler wanted.
func (s summary) skip(c tele.Context) error {
	s.status = "skip"
	s.log(c, nil)
	return nil
}

func (s summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	n := middleware.GetCounters(c)

	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	status := s.status
	if status == "" {
		status = outcome
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Int("messages", n.Sent),
		slog.Int("edits", n.Edited),
		slog.Bool("kb", n.Keyboard),
		slog.Duration("duration", time.Since(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, s.extras...)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// deriveErrorCode names an error for aggregation: Bot API errors by their
// code, errors exposing Code() by that, anything else by its type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return "TG_API_" + strconv.Itoa(apiErr.Code)
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
