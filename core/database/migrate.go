package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/sessionbot/core/logger"
)

const previewLimit = 6

// RunMigrations applies all up migrations from the migrations directory.
func RunMigrations(cfg Config) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}

	if cfg.Driver == DriverPostgres {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := WaitForDatabase(ctx, cfg, 2*time.Second)
		cancel()
		if err != nil {
			logger.MIG.Error("db not ready",
				slog.String("event", "db.migrate"),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	dir, err := migrationsDir(cfg)
	if err != nil {
		logger.MIG.Error("migrations dir lookup failed",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return err
	}

	files := listMigrationFiles(dir)
	logger.MIG.Debug("migrations resolved",
		slog.String("event", "db.migrate.resolve"),
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview(files)),
	)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.MigrateURL())
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("driver", cfg.Driver),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("migrate close failed",
				slog.String("event", "db.migrate.close"),
				slog.Any("err", errors.Join(srcErr, dbErr)),
			)
		}
	}()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "db.migrate.apply"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files",
			slog.String("event", "db.migrate.apply"),
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", preview(applied)),
		)
	}

	logger.MIG.Info("migrations summary",
		slog.String("event", "db.migrate.summary"),
		slog.String("driver", cfg.Driver),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func migrationsDir(cfg Config) (string, error) {
	if cfg.MigrationsDir != "" {
		return filepath.Abs(cfg.MigrationsDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, "migrations"), nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

// preview joins up to previewLimit names and marks the rest with a count.
func preview(names []string) string {
	if len(names) <= previewLimit {
		return strings.Join(names, ",")
	}
	return strings.Join(names[:previewLimit], ",") + ",+" + strconv.Itoa(len(names)-previewLimit)
}
