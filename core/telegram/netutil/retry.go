package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// ShouldRetry reports whether a network error is worth retrying.
// It focuses on transient dial/timeout failures produced by net/http
// while contacting the Telegram API.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() || netErr.Temporary() {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
		if nested, ok := opErr.Err.(net.Error); ok {
			if nested.Timeout() || nested.Temporary() {
				return true
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return ShouldRetry(urlErr.Err)
		}
	}

	return false
}

// ErrRetriesExhausted marks a failure that persisted after the allowed retries.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy parameterises Retry.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// Backoff classifies an error: it returns the wait before the next attempt
	// and whether the error is retryable at all.
	Backoff func(err error) (time.Duration, bool)
	// MaxWait caps a single mandated wait; larger waits fail immediately.
	// Zero means no cap.
	MaxWait time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Retry calls fn and repeats it while the policy classifies the error as
// retryable. Once at least one retry happened, any further failure is
// wrapped with ErrRetriesExhausted and returned with the last error.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	retried := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retried > 0 && retried >= p.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retried+1, err)
		}
		wait, ok := time.Duration(0), false
		if p.Backoff != nil {
			wait, ok = p.Backoff(err)
		}
		if !ok {
			if retried > 0 {
				return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retried+1, err)
			}
			return err
		}
		if p.MaxRetries <= 0 || (p.MaxWait > 0 && wait > p.MaxWait) {
			return fmt.Errorf("%w: wait %s not allowed: %w", ErrRetriesExhausted, wait, err)
		}
		retried++
		if p.OnRetry != nil {
			p.OnRetry(retried, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
