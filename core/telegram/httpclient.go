package telegram

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/sessionbot/core/telegram/netutil"
)

// HTTPClientOptions tunes the Bot API client. Zero fields take defaults.
type HTTPClientOptions struct {
	Timeout         time.Duration
	ResponseTimeout time.Duration
	Retries         int
	Backoff         time.Duration
}

func (o *HTTPClientOptions) defaults() {
	if o.Timeout <= 0 {
		// long polling holds requests open, the client timeout must exceed it
		o.Timeout = 90 * time.Second
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 75 * time.Second
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
}

// BuildHTTPClient returns an HTTP client for Bot API calls that retries
// transient dial and timeout failures of replayable requests.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	opts.defaults()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &retryTransport{
			base: transport,
			policy: netutil.RetryPolicy{
				MaxRetries: opts.Retries,
				Backoff: func(err error) (time.Duration, bool) {
					return opts.Backoff, netutil.ShouldRetry(err)
				},
			},
		},
	}
}

type retryTransport struct {
	base   http.RoundTripper
	policy netutil.RetryPolicy
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// a consumed body without GetBody cannot be replayed
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return t.base.RoundTrip(req)
	}
	var (
		resp    *http.Response
		attempt int
	)
	err := netutil.Retry(req.Context(), t.policy, func(ctx context.Context) error {
		curr := req
		if attempt > 0 {
			curr = req.Clone(ctx)
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return err
				}
				curr.Body = body
			}
		}
		attempt++
		var err error
		resp, err = t.base.RoundTrip(curr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
