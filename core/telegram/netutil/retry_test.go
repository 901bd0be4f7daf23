package netutil

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

var errFlood = errors.New("flood")

func floodPolicy(sleeps *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		Backoff: func(err error) (time.Duration, bool) {
			if errors.Is(err, errFlood) {
				return 3 * time.Second, true
			}
			return 0, false
		},
		MaxWait: time.Minute,
		Sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
}

func TestRetryOnceThenSucceed(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	err := Retry(context.Background(), floodPolicy(&sleeps), func(context.Context) error {
		calls++
		if calls == 1 {
			return errFlood
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(sleeps) != 1 || sleeps[0] != 3*time.Second {
		t.Fatalf("sleeps = %v", sleeps)
	}
}

func TestRetryExhaustedAfterSecondFailure(t *testing.T) {
	other := errors.New("other")
	cases := map[string]error{"flood again": errFlood, "different error": other}
	for name, second := range cases {
		t.Run(name, func(t *testing.T) {
			var sleeps []time.Duration
			calls := 0
			err := Retry(context.Background(), floodPolicy(&sleeps), func(context.Context) error {
				calls++
				if calls == 1 {
					return errFlood
				}
				return second
			})
			if !errors.Is(err, ErrRetriesExhausted) {
				t.Fatalf("expected ErrRetriesExhausted, got %v", err)
			}
			if !errors.Is(err, second) {
				t.Fatalf("expected wrapped %v, got %v", second, err)
			}
			if calls != 2 {
				t.Fatalf("calls = %d, want exactly 2", calls)
			}
		})
	}
}

func TestRetryNonRetryablePassesThrough(t *testing.T) {
	var sleeps []time.Duration
	other := errors.New("other")
	calls := 0
	err := Retry(context.Background(), floodPolicy(&sleeps), func(context.Context) error {
		calls++
		return other
	})
	if !errors.Is(err, other) || errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || len(sleeps) != 0 {
		t.Fatalf("calls = %d sleeps = %v", calls, sleeps)
	}
}

func TestRetryWaitAboveCap(t *testing.T) {
	var sleeps []time.Duration
	p := floodPolicy(&sleeps)
	p.MaxWait = time.Second
	calls := 0
	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return errFlood
	})
	if !errors.Is(err, ErrRetriesExhausted) || calls != 1 || len(sleeps) != 0 {
		t.Fatalf("err = %v calls = %d sleeps = %v", err, calls, sleeps)
	}
}

func TestRetryContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := RetryPolicy{
		MaxRetries: 1,
		Backoff:    func(error) (time.Duration, bool) { return time.Hour, true },
	}
	err := Retry(ctx, p, func(context.Context) error { return errFlood })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(nil) {
		t.Fatal("nil error must not be retried")
	}
	if !ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}) {
		t.Fatal("dial errors are transient")
	}
	if ShouldRetry(errors.New("plain")) {
		t.Fatal("plain errors are not transient")
	}
}
