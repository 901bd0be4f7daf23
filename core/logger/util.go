package logger

import (
	"context"
	"errors"
	"time"
)

// Status maps err to the status attribute: ok, cancelled or fail.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "fail"
}

// Took returns the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return roundMS(time.Since(start))
}

func roundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}
