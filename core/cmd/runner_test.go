package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/sessionbot/core/config"
	coretelegram "github.com/m3rciful/sessionbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{ opts coretelegram.RunOptions }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func TestRunWiresHooks(t *testing.T) {
	t.Setenv("SESSIONBOT_TEST_CONFIG", "custom.yaml")

	var (
		loaded   string
		started  bool
		shutdown int
	)
	err := Run(Options{
		ConfigEnvVar: "SESSIONBOT_TEST_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error { started = true; return nil },
			}}, nil
		},
		ShutdownLogger: func() error { shutdown++; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loaded != "custom.yaml" || !started || shutdown != 1 {
		t.Fatalf("loaded=%q started=%v shutdown=%d", loaded, started, shutdown)
	}
}

func TestRunFlushesLoggerOnBootstrapFailure(t *testing.T) {
	boom := errors.New("boom")
	shutdown := 0
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return nil, boom
		},
		ShutdownLogger: func() error { shutdown++; return nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if shutdown != 1 {
		t.Fatalf("logger shutdown called %d times", shutdown)
	}
}

func TestConfigPathRequired(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if _, err := configPath(Options{}); err == nil {
		t.Fatal("expected error without a config path")
	}
}
