package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3rciful/sessionbot/app/config"
	"github.com/m3rciful/sessionbot/app/settings"
	"github.com/m3rciful/sessionbot/app/storage"
	"github.com/m3rciful/sessionbot/core/bootstrap"
	coreconfig "github.com/m3rciful/sessionbot/core/config"
	"github.com/m3rciful/sessionbot/core/database"
	tg "github.com/m3rciful/sessionbot/core/telegram"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "123:abc", AdminID: 1},
		},
		Database: database.Config{
			Driver:        database.DriverSQLite,
			Path:          filepath.Join(t.TempDir(), "bot.db"),
			MigrationsDir: filepath.Join("..", "migrations"),
		},
		MTProto:      config.MTProtoConfig{AppID: 1, AppHash: "hash"},
		PremiumUsers: []int64{11, 12},
	}
	if err := config.Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBootstrapSeedsPremiumUsers(t *testing.T) {
	cfg := testConfig(t)
	res, err := bootstrap.Run(context.Background(), bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Modules:    bootstrap.Modules{Seeders: []bootstrap.Seeder{PremiumSeeder(cfg.PremiumUsers)}},
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer res.DB.Close()

	users := storage.NewUsers(res.DB)
	for _, id := range cfg.PremiumUsers {
		ok, err := users.IsPremium(context.Background(), id)
		if err != nil || !ok {
			t.Fatalf("user %d premium=%v err=%v", id, ok, err)
		}
	}

	// seeding twice keeps existing rows and lifts an expiring grant
	soon := time.Now().Add(time.Hour)
	if err := users.SetPremium(context.Background(), 11, &soon); err != nil {
		t.Fatal(err)
	}
	if err := PremiumSeeder(cfg.PremiumUsers).Seed(context.Background(), res.DB); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	prof, ok, err := users.Profile(context.Background(), 11)
	if err != nil || !ok {
		t.Fatalf("profile 11: ok=%v err=%v", ok, err)
	}
	if !prof.Premium || prof.PremiumUntil != nil {
		t.Fatalf("profile 11 premium=%v until=%v, want unbounded", prof.Premium, prof.PremiumUntil)
	}
}

func TestNewWiresRoutes(t *testing.T) {
	cfg := testConfig(t)
	if err := database.RunMigrations(cfg.Database); err != nil {
		t.Fatal(err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		t.Fatal(err)
	}

	a, err := New(cfg, db)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatal(err)
	}

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []string{"/start", "/help", "/login", "/logout", "/cancel", "/cancellogin", "/settings", "/premium", "\atext"} {
		if !endpoints[want] {
			t.Errorf("endpoint %q not routed", want)
		}
	}
	for _, key := range []string{settings.BtnCommands, settings.BtnStats, settings.BtnBack, settings.BtnClose} {
		if _, ok := a.registry.GetCallback(key); !ok {
			t.Errorf("callback %s not registered", key)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := opts.OnStop(ctx, tg.Runtime{}); err != nil {
		t.Fatalf("OnStop: %v", err)
	}
}
