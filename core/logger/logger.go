// Package logger configures the process-wide slog logger and provides the
// component/event helpers every package logs through.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/earlybot/core/buildinfo"
	coreconfig "github.com/m3rciful/earlybot/core/config"
)

const defaultDebugSample = "1/50"

var (
	initOnce sync.Once

	closeMu sync.Mutex
	closed  bool
	writers []*asyncWriter
	files   []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. It falls back to slog.Default until InitLogger runs.
	L *slog.Logger

	// DB logs connection events.
	DB *slog.Logger
	// MIG logs schema migrations.
	MIG *slog.Logger
)

func init() {
	L = slog.Default()
	deriveComponents()
}

// settings is the logging section of the config with defaults applied.
type settings struct {
	level      slog.Level
	format     logFormat
	keyOrder   []string
	sampleNum  int
	sampleDen  int
	profile    string
	botFile    string
	errorsFile string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		level:     slog.LevelInfo,
		format:    formatJSON,
		keyOrder:  append([]string(nil), defaultKeyOrder...),
		sampleNum: 1,
		sampleDen: 50,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.keyOrder = order
		}
	}

	spec := strings.TrimSpace(lc.DebugSample)
	if spec == "" {
		spec = defaultDebugSample
	}
	s.sampleNum, s.sampleDen = parseRatioSpec(spec)

	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		if f := strings.TrimSpace(lc.BotFile); f != "" {
			s.botFile = filepath.Join(dir, f)
		}
		if f := strings.TrimSpace(lc.ErrorsFile); f != "" {
			s.errorsFile = filepath.Join(dir, f)
		}
	}
	return s
}

// InitLogger installs the structured handler as L and slog's default.
// Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		sinks := []io.Writer{os.Stdout}
		var errSink io.Writer
		if s.botFile != "" {
			f, openErr := openLogFile(s.botFile)
			if openErr != nil {
				err = openErr
				return
			}
			sinks = append(sinks, f)
		}
		if s.errorsFile != "" {
			f, openErr := openLogFile(s.errorsFile)
			if openErr != nil {
				err = openErr
				return
			}
			errSink = f
		}

		cfgH := handlerConfig{
			level:    &levelVar,
			writer:   newAsyncWriter(sinks, 1024),
			format:   s.format,
			keyOrder: s.keyOrder,
		}
		writers = append(writers, cfgH.writer)
		if errSink != nil {
			cfgH.errors = newAsyncWriter([]io.Writer{errSink}, 256)
			writers = append(writers, cfgH.errors)
		}

		L = slog.New(newStructuredHandler(cfgH))
		slog.SetDefault(L)
		deriveComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("profile", s.profile),
		)
	})
	return err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	files = append(files, f)
	return f, nil
}

func deriveComponents() {
	DB = Component("db")
	MIG = Component("db.migrate")
}

// Shutdown flushes pending lines and closes log files. It is idempotent.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Background is context.Background for call sites without an update context.
func Background() context.Context {
	return context.Background()
}

// LogEvent logs attrs with an "event" attribute on logg, or on the
// context logger when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L tagged with component name.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs one event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug event.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info event.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error event.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
