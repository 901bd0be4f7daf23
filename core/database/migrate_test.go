package database

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_init.up.sql", "0002_users.up.sql", "0003_caption.up.sql"}
	got := selectApplied(files, 1, 3)
	want := []string{"0002_users.up.sql", "0003_caption.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("selectApplied = %v, want %v", got, want)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestPreview(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	if got := preview(names); got != "a,b,c,d,e,f,+2" {
		t.Fatalf("preview = %q", got)
	}
	if got := preview(names[:2]); got != "a,b" {
		t.Fatalf("preview = %q", got)
	}
}

func TestListMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	got := listMigrationFiles(dir)
	want := []string{"0001_a.up.sql", "0002_b.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listMigrationFiles = %v, want %v", got, want)
	}
}

func TestRunMigrationsSQLite(t *testing.T) {
	dir := t.TempDir()
	up := "CREATE TABLE things (id INTEGER PRIMARY KEY);"
	if err := os.WriteFile(filepath.Join(dir, "0001_things.up.sql"), []byte(up), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "0001_things.down.sql"), []byte("DROP TABLE things;"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bot.db"), MigrationsDir: dir}
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("second run must be a no-op: %v", err)
	}

	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("INSERT INTO things (id) VALUES (1)"); err != nil {
		t.Fatalf("table missing after migration: %v", err)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Host: "db", Name: "bot"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != DriverPostgres || cfg.Port != "5432" || cfg.SSLMode != "disable" || cfg.MaxConnections != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if got := cfg.MigrateURL(); got != "postgres://:@db:5432/bot?sslmode=disable" {
		t.Fatalf("MigrateURL = %q", got)
	}

	bad := Config{Driver: "mysql"}
	if err := bad.Normalize(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
