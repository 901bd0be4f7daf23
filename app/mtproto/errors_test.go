package mtproto

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"phone", tgerr.New(400, "PHONE_NUMBER_INVALID"), ErrPhoneInvalid},
		{"code invalid", tgerr.New(400, "PHONE_CODE_INVALID"), ErrCodeInvalid},
		{"code empty", tgerr.New(400, "PHONE_CODE_EMPTY"), ErrCodeInvalid},
		{"code expired", tgerr.New(400, "PHONE_CODE_EXPIRED"), ErrCodeExpired},
		{"password needed", auth.ErrPasswordAuthNeeded, ErrPasswordNeeded},
		{"password needed wrapped", fmt.Errorf("sign in: %w", auth.ErrPasswordAuthNeeded), ErrPasswordNeeded},
		{"password invalid", tgerr.New(400, "PASSWORD_HASH_INVALID"), ErrPasswordInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if !errors.Is(got, tc.in) {
				t.Fatalf("original error dropped from chain: %v", got)
			}
		})
	}
}

func TestMapErrorFloodWait(t *testing.T) {
	err := mapError(tgerr.New(420, "FLOOD_WAIT_30"))
	wait, ok := AsFloodWait(fmt.Errorf("send code: %w", err))
	if !ok || wait != 30*time.Second {
		t.Fatalf("AsFloodWait = %v %v", wait, ok)
	}
	if _, ok := AsFloodWait(ErrCodeInvalid); ok {
		t.Fatal("plain error is not a flood wait")
	}
}

func TestMapErrorPassthrough(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	boom := errors.New("boom")
	if got := mapError(boom); got != boom {
		t.Fatalf("unknown error changed: %v", got)
	}
}

func TestClientNotConnected(t *testing.T) {
	f, err := NewFactory(Options{AppID: 1, AppHash: "hash"})
	if err != nil {
		t.Fatal(err)
	}
	c := f.New()
	if _, err := c.SendCode(context.Background(), "+1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendCode before Connect = %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect before Connect = %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second Disconnect = %v", err)
	}
}

func TestNewFactoryValidates(t *testing.T) {
	if _, err := NewFactory(Options{}); err == nil {
		t.Fatal("expected error without credentials")
	}
}
