// Package sender runs outbound Bot API calls on background workers.
//
// Jobs for one chat always land on the same worker, so replies to a user are
// delivered in the order handlers produced them.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/sessionbot/core/logger"
	"github.com/m3rciful/sessionbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat's worker queue is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the buffer of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is one outbound call. Run must be safe to repeat when retries are enabled.
type Job struct {
	ChatID   int64
	Action   string
	Endpoint string
	Run      func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Stats are cumulative counters of finished jobs.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retried uint64
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts   Options
	shards []chan queued
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	sent, failed, retried atomic.Uint64
}

// NewDispatcher starts the workers, filling zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{opts: opts, shards: make([]chan queued, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan queued, opts.QueueSize)
		go d.worker(d.shards[i])
	}
	return d
}

func (d *Dispatcher) shard(chatID int64) chan queued {
	n := uint64(chatID)
	if chatID < 0 {
		n = uint64(-chatID)
	}
	return d.shards[n%uint64(len(d.shards))]
}

// Enqueue schedules j on the worker owning its chat.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shard(j.ChatID) <- queued{ctx: ctx, Job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the job counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Retried: d.retried.Load()}
}

// Close stops accepting jobs and waits until queued ones are processed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(jobs <-chan queued) {
	defer d.wg.Done()
	for j := range jobs {
		d.handle(j)
	}
}

func (d *Dispatcher) handle(j queued) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := 0
	err := netutil.Retry(ctx, netutil.RetryPolicy{
		MaxRetries: d.opts.MaxRetries,
		MaxWait:    d.opts.MaxDuration,
		Backoff: func(err error) (time.Duration, bool) {
			return d.backoff(attempts, err)
		},
		OnRetry: func(n int, wait time.Duration, err error) {
			d.retried.Add(1)
			logger.Debug(j.ctx, "tg.sender", "send.retry.backoff",
				append(jobAttrs(j),
					slog.Int("attempt", n),
					slog.Duration("wait", wait),
					slog.String("err_kind", classifyError(err)),
				)...,
			)
		},
	}, func(context.Context) error {
		attempts++
		return j.Run()
	})

	attrs := append(jobAttrs(j),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		d.failed.Add(1)
		logger.Error(j.ctx, "tg.sender", "send.fail",
			append(attrs,
				slog.String("err", sanitizeErrorMessage(err)),
				slog.String("err_kind", classifyError(err)),
			)...,
		)
		return
	}
	d.sent.Add(1)
	logger.Debug(j.ctx, "tg.sender", "send.success", attrs...)
}

// backoff honours Telegram's retry_after on 429 and grows linearly for transient network errors.
func (d *Dispatcher) backoff(attempt int, err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func jobAttrs(j queued) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.Action)}
	if j.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.Endpoint))
	}
	if j.ChatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", j.ChatID))
	}
	if rid := logger.RIDFrom(j.ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	return attrs
}

// classifyError buckets a failure for dashboards; "api" covers Bot API
// rejections whose description already explains the cause.
func classifyError(err error) string {
	var (
		flood  tele.FloodError
		apiErr *tele.Error
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr):
		if apiErr.Code >= 500 {
			return "http_5xx"
		}
		return "api"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case netutil.ShouldRetry(err):
		return "network"
	}
	return "unknown"
}

// sanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
