package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/sessionbot/core/telegram/netutil"
)

type flakyTripper struct {
	fails int
	calls int
	err   error
}

func (f *flakyTripper) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func testTransport(base http.RoundTripper) *retryTransport {
	return &retryTransport{
		base: base,
		policy: netutil.RetryPolicy{
			MaxRetries: 2,
			Backoff: func(err error) (time.Duration, bool) {
				return 0, netutil.ShouldRetry(err)
			},
		},
	}
}

func TestRetryTransportRecovers(t *testing.T) {
	base := &flakyTripper{fails: 2, err: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/getMe", strings.NewReader("a=1"))
	resp, err := testTransport(base).RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusOK || base.calls != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, base.calls)
	}
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &flakyTripper{fails: 5, err: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	if _, err := testTransport(base).RoundTrip(req); !errors.Is(err, netutil.ErrRetriesExhausted) {
		t.Fatalf("expected exhausted retries, got %v", err)
	}
	if base.calls != 3 {
		t.Fatalf("calls = %d", base.calls)
	}
}

func TestRetryTransportPermanentError(t *testing.T) {
	base := &flakyTripper{fails: 1, err: errors.New("tls: bad certificate")}
	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	if _, err := testTransport(base).RoundTrip(req); err == nil || base.calls != 1 {
		t.Fatalf("err=%v calls=%d", err, base.calls)
	}
}
