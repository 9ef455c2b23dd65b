package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/earlybot/core/logger"
)

// RunMigrations applies every pending up migration found in source under
// the directory named after the driver, e.g. "sqlite/0001_init.up.sql".
func RunMigrations(cfg Config, source fs.FS) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if source == nil {
		return errors.New("migrations source is nil")
	}
	ctx := context.Background()
	if cfg.Driver == DriverPostgres {
		if err := waitReady(ctx, cfg); err != nil {
			return migrateFailed(ctx, "wait", err)
		}
	}

	files := upFiles(source, cfg.Driver)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.resolve",
		append([]slog.Attr{slog.String("path", cfg.Driver)}, filesAttrs(files)...)...)

	src, err := iofs.New(source, cfg.Driver)
	if err != nil {
		return migrateFailed(ctx, "source", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return migrateFailed(ctx, "init", err)
	}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "migrate.close", slog.String("err", err.Error()))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrateFailed(ctx, "apply", err)
	}
	to, _, _ := m.Version()

	applied := between(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.applied", filesAttrs(applied)...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "migrate.summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

func migrateFailed(ctx context.Context, stage string, err error) error {
	logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.failed",
		slog.String("stage", stage),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("migrations %s: %w", stage, err)
}

func filesAttrs(files []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(files))}
	preview, truncated := logger.SummarizeStrings(files, 6)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func upFiles(source fs.FS, dir string) []string {
	entries, err := fs.ReadDir(source, dir)
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

// between returns the files whose version prefix lies in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
