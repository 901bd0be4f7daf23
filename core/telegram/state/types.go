package state

import "time"

// State identifies a finite-state-machine step used in conversations.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Reason explains why a session left the store.
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonCancelled Reason = "cancelled"
	ReasonFailed    Reason = "failed"
	ReasonExpired   Reason = "expired"
	ReasonReplaced  Reason = "replaced"
	ReasonLogout    Reason = "logout"
)

// Session stores the conversation step and its typed payload for one user.
type Session[T any] struct {
	State     State
	Data      T
	UpdatedAt time.Time
}

// Store keeps at most one session per user id.
type Store[T any] interface {
	Get(userID int64) (Session[T], bool)
	Put(userID int64, s Session[T])
	// Delete removes the entry and returns what was stored.
	Delete(userID int64) (Session[T], bool)
	Len() int
}

// Expirer is implemented by stores that evict idle sessions on their own.
type Expirer[T any] interface {
	OnExpire(fn func(userID int64, s Session[T]))
}

// Hooks are lifecycle callbacks invoked by Machine.
type Hooks[T any] struct {
	// OnDiscard runs once for every session removed from the store.
	OnDiscard func(userID int64, s Session[T], reason Reason)
}
