package mtproto

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
)

// loopRecorder stands in for telegram.Client.Run. The first run fails with a
// flood wait; later runs connect and block until cancelled.
type loopRecorder struct {
	mu      sync.Mutex
	runs    int
	running int
}

func (r *loopRecorder) run(ctx context.Context, f func(ctx context.Context) error) error {
	r.mu.Lock()
	r.runs++
	n := r.runs
	r.running++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
	}()

	if n == 1 {
		return tgerr.New(420, "FLOOD_WAIT_3")
	}
	return f(ctx)
}

func (r *loopRecorder) state() (runs, running int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.running
}

func TestConnectRetryAfterFailureIsStoppedByDisconnect(t *testing.T) {
	rec := &loopRecorder{}
	c := &Client{timeout: time.Second, runLoop: rec.run}
	ctx := context.Background()

	err := c.Connect(ctx)
	if wait, ok := AsFloodWait(err); !ok || wait != 3*time.Second {
		t.Fatalf("first connect err = %v, want flood wait 3s", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if err := c.ready(); err != nil {
		t.Fatalf("client not ready after reconnect: %v", err)
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if runs, running := rec.state(); runs != 2 || running != 0 {
		t.Fatalf("runs=%d running=%d, want 2 runs and none left", runs, running)
	}
	if err := c.Connect(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("connect after disconnect = %v, want ErrClosed", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}

func TestDisconnectDuringConnectStopsLoop(t *testing.T) {
	started := make(chan struct{})
	exited := make(chan struct{})
	c := &Client{timeout: 5 * time.Second, runLoop: func(ctx context.Context, _ func(context.Context) error) error {
		defer close(exited)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}

	errc := make(chan error, 1)
	go func() { errc <- c.Connect(context.Background()) }()
	<-started
	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("client loop still running after disconnect")
	}
	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("connect should fail when disconnected before ready")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not return")
	}
}
