package login

import (
	"context"
	"sync"
)

// userLocks serializes the turns of each user. Entries live only while
// someone holds or waits for them.
type userLocks struct {
	mu sync.Mutex
	m  map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*userLock)
	}
	e, ok := l.m[userID]
	if !ok {
		e = &userLock{}
		l.m[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		if e.refs--; e.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// turns tracks the running turn of each user so /cancel, /logout and a new
// /login can interrupt a network call or flood wait instead of queueing
// behind it.
type turns struct {
	mu sync.Mutex
	m  map[int64]*turnHandle
}

type turnHandle struct {
	cancel context.CancelFunc
}

// begin derives the context of a turn. end must be called when it returns.
func (t *turns) begin(ctx context.Context, userID int64) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	h := &turnHandle{cancel: cancel}
	t.mu.Lock()
	if t.m == nil {
		t.m = make(map[int64]*turnHandle)
	}
	t.m[userID] = h
	t.mu.Unlock()
	return ctx, func() {
		t.mu.Lock()
		if t.m[userID] == h {
			delete(t.m, userID)
		}
		t.mu.Unlock()
		cancel()
	}
}

func (t *turns) interrupt(userID int64) {
	t.mu.Lock()
	h := t.m[userID]
	t.mu.Unlock()
	if h != nil {
		h.cancel()
	}
}
