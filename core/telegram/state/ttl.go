package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

// TTLStore evicts sessions that were not written for the configured ttl.
type TTLStore[T any] struct {
	cache otter.Cache[int64, Session[T]]

	// guards Delete so an explicit removal and the read of the old value are atomic
	mu sync.Mutex

	fnMu     sync.RWMutex
	onExpire func(userID int64, s Session[T])
}

// NewTTLStore builds an otter-backed store holding up to capacity sessions.
func NewTTLStore[T any](capacity int, ttl time.Duration) (*TTLStore[T], error) {
	if capacity <= 0 {
		capacity = 10_000
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("state: ttl must be positive, got %s", ttl)
	}
	s := &TTLStore[T]{}
	c, err := otter.MustBuilder[int64, Session[T]](capacity).
		WithTTL(ttl).
		DeletionListener(func(userID int64, sess Session[T], cause otter.DeletionCause) {
			if cause != otter.Expired && cause != otter.Size {
				return
			}
			s.fnMu.RLock()
			fn := s.onExpire
			s.fnMu.RUnlock()
			if fn != nil {
				fn(userID, sess)
			}
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("state: build ttl cache with capacity %d: %w", capacity, err)
	}
	s.cache = c
	return s, nil
}

// OnExpire registers the callback run for sessions evicted by ttl or capacity.
func (s *TTLStore[T]) OnExpire(fn func(userID int64, s Session[T])) {
	s.fnMu.Lock()
	defer s.fnMu.Unlock()
	s.onExpire = fn
}

func (s *TTLStore[T]) Get(userID int64) (Session[T], bool) {
	return s.cache.Get(userID)
}

func (s *TTLStore[T]) Put(userID int64, sess Session[T]) {
	s.cache.Set(userID, sess)
}

func (s *TTLStore[T]) Delete(userID int64) (Session[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.cache.Get(userID)
	if ok {
		s.cache.Delete(userID)
	}
	return sess, ok
}

func (s *TTLStore[T]) Len() int {
	return s.cache.Size()
}

// Close stops the cache maintenance goroutines.
func (s *TTLStore[T]) Close() {
	s.cache.Close()
}
