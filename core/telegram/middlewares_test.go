package telegram

import (
	"testing"

	coreconfig "github.com/m3rciful/sessionbot/core/config"
)

func middlewareNames(mws []Middleware) []string {
	names := make([]string, 0, len(mws))
	for _, mw := range mws {
		names = append(names, mw.Name)
	}
	return names
}

func TestDefaultMiddlewares(t *testing.T) {
	got := middlewareNames(DefaultMiddlewares(&coreconfig.Config{}, nil))
	want := []string{"recover", "logger", "metrics"}
	if len(got) != len(want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain = %v, want %v", got, want)
		}
	}

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 300, ExcludeUpdates: []string{" Callback "}}}
	got = middlewareNames(DefaultMiddlewares(cfg, nil))
	if len(got) != 4 || got[1] != "rate_limit" {
		t.Fatalf("chain = %v", got)
	}
}
