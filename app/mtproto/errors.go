package mtproto

import (
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
)

var (
	ErrPhoneInvalid    = errors.New("phone number invalid")
	ErrCodeInvalid     = errors.New("login code invalid")
	ErrCodeExpired     = errors.New("login code expired")
	ErrPasswordNeeded  = errors.New("two-step password required")
	ErrPasswordInvalid = errors.New("two-step password invalid")
	ErrNotConnected    = errors.New("mtproto client not connected")
)

// FloodWaitError reports a server-mandated pause before the call may be repeated.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

func (e *FloodWaitError) Unwrap() error { return e.Err }

// AsFloodWait extracts the mandated wait from err.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}

// mapError translates gotd errors into this package's sentinels, keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &FloodWaitError{Wait: d, Err: err}
	}

	var sentinel error
	switch {
	case errors.Is(err, auth.ErrPasswordAuthNeeded), tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		sentinel = ErrPasswordNeeded
	case errors.Is(err, auth.ErrPasswordInvalid), tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		sentinel = ErrPasswordInvalid
	case tgerr.Is(err, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED"):
		sentinel = ErrPhoneInvalid
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY"):
		sentinel = ErrCodeInvalid
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		sentinel = ErrCodeExpired
	default:
		return err
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
