// Package mtproto wraps a short-lived gotd client used only to complete a
// phone/code/password login and export the resulting session.
package mtproto

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/m3rciful/sessionbot/core/logger"
)

// Options configure new clients.
type Options struct {
	AppID          int
	AppHash        string
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// Factory creates fresh transient clients.
type Factory struct {
	opts Options
}

// NewFactory validates opts and returns a factory.
func NewFactory(opts Options) (*Factory, error) {
	if opts.AppID <= 0 || opts.AppHash == "" {
		return nil, fmt.Errorf("mtproto: app id and hash are required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Zap("mtproto")
	}
	return &Factory{opts: opts}, nil
}

// New returns an unconnected client with in-memory session storage.
func (f *Factory) New() *Client {
	storage := &session.StorageMemory{}
	return &Client{
		storage: storage,
		timeout: f.opts.ConnectTimeout,
		client: telegram.NewClient(f.opts.AppID, f.opts.AppHash, telegram.Options{
			SessionStorage: storage,
			Logger:         f.opts.Logger,
			NoUpdates:      true,
		}),
	}
}

// Client is one transient login session. It is not reused after Disconnect.
type Client struct {
	client  *telegram.Client
	storage *session.StorageMemory
	timeout time.Duration
	// runLoop defaults to client.Run.
	runLoop func(ctx context.Context, f func(ctx context.Context) error) error

	mu        sync.Mutex
	connected bool
	closed    bool
	cur       *loop
}

// loop is one run of the client; err is set before done is closed.
type loop struct {
	stop context.CancelFunc
	done chan struct{}
	err  error
}

// ErrClosed is returned by Connect after Disconnect.
var ErrClosed = errors.New("mtproto client closed")

// Connect starts the client loop and waits until it is usable. A failed
// attempt stops its loop, so Connect may be called again.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	runCtx, stop := context.WithCancel(context.Background())
	l := &loop{stop: stop, done: make(chan struct{})}
	c.cur = l
	c.mu.Unlock()

	run := c.runLoop
	if run == nil {
		run = c.client.Run
	}
	start := time.Now()
	ready := make(chan struct{})
	go func() {
		defer close(l.done)
		l.err = run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var err error
	select {
	case <-ready:
		c.mu.Lock()
		ok := c.cur == l && !c.closed
		c.connected = ok
		c.mu.Unlock()
		if ok {
			logger.MTProto.Debug("mtproto connected",
				slog.String("event", "mtproto.connect"),
				slog.String("status", "ok"),
				slog.Duration("duration", logger.Took(start)),
			)
			return nil
		}
		err = ErrClosed
	case <-l.done:
		err = l.err
		if err == nil {
			err = errors.New("client stopped before ready")
		}
	case <-timer.C:
		err = fmt.Errorf("connect timeout after %s", c.timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	_ = c.halt(l)
	logger.MTProto.Warn("mtproto connect failed",
		slog.String("event", "mtproto.connect"),
		slog.String("status", "fail"),
		slog.Any("err", err),
	)
	return fmt.Errorf("mtproto connect: %w", mapError(err))
}

// halt stops l and waits for its loop to return. Repeated calls are no-ops.
func (c *Client) halt(l *loop) error {
	c.mu.Lock()
	if c.cur == l {
		c.cur = nil
		c.connected = false
	}
	c.mu.Unlock()
	l.stop()
	<-l.done
	if l.err != nil && !errors.Is(l.err, context.Canceled) {
		return l.err
	}
	return nil
}

// SendCode requests a login code and returns the phone code hash.
func (c *Client) SendCode(ctx context.Context, phone string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", fmt.Errorf("send code: %w", mapError(err))
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("send code: unexpected response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

// SignIn submits the received code. ErrPasswordNeeded means a second factor follows.
func (c *Client) SignIn(ctx context.Context, phone, codeHash, code string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.client.Auth().SignIn(ctx, phone, code, codeHash); err != nil {
		return fmt.Errorf("sign in: %w", mapError(err))
	}
	return nil
}

// CheckPassword completes a login guarded by a two-step password.
func (c *Client) CheckPassword(ctx context.Context, password string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.client.Auth().Password(ctx, password); err != nil {
		return fmt.Errorf("check password: %w", mapError(err))
	}
	return nil
}

// ExportSession returns the authorized session as a base64 string.
func (c *Client) ExportSession(ctx context.Context) (string, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return "", fmt.Errorf("export session: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("export session: empty session data")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Disconnect stops the running loop, if any, and waits for it. Later
// Connect calls fail. Safe to call repeatedly and concurrently with Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	l := c.cur
	c.mu.Unlock()
	if l == nil {
		return nil
	}
	err := c.halt(l)
	logger.MTProto.Debug("mtproto disconnected",
		slog.String("event", "mtproto.disconnect"),
		slog.String("status", logger.Status(err)),
	)
	return err
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	return nil
}
