package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/m3rciful/earlybot/core/bootstrap"
	coredatabase "github.com/m3rciful/earlybot/core/database"
	"github.com/m3rciful/earlybot/core/logger"
	tg "github.com/m3rciful/earlybot/core/telegram"
	"github.com/m3rciful/earlybot/core/telegram/router"
	"github.com/m3rciful/earlybot/internal/access"
	"github.com/m3rciful/earlybot/internal/bot"
	"github.com/m3rciful/earlybot/internal/broadcast"
	"github.com/m3rciful/earlybot/internal/onboarding"
	"github.com/m3rciful/earlybot/internal/report"
	"github.com/m3rciful/earlybot/internal/subscriber"
	"github.com/m3rciful/earlybot/migrations"
)

// App owns the wired services and their lifecycle.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	handlers *bot.Handlers
	cron     *cron.Cron
}

// Services builds the chat handlers on top of an open database.
var Services = bootstrap.TypedServiceProviderFunc[*bot.Handlers](
	func(_ context.Context, raw interface{}, storage bootstrap.Storage) (*bot.Handlers, error) {
		cfg, ok := raw.(*Config)
		if !ok {
			return nil, fmt.Errorf("app: unexpected config type %T", raw)
		}
		db, ok := storage.(*sqlx.DB)
		if !ok || db == nil {
			return nil, fmt.Errorf("app: unexpected storage type %T", storage)
		}
		store := subscriber.NewStore(db)
		operators := access.NewList(cfg.Telegram.AdminIDs)
		return &bot.Handlers{
			Onboarding: onboarding.NewService(store, cfg.Onboarding),
			Reports:    report.NewService(store, operators),
			Broadcasts: broadcast.NewEngine(store, operators, cfg.Broadcast),
			Operators:  operators,
		}, nil
	},
)

// Bootstrap initializes logging, migrates and opens the store, and wires services.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	return assemble(cfg, res)
}

// Migrate applies pending schema migrations without starting the bot.
func Migrate(cfg *Config) error {
	if cfg == nil {
		return errors.New("app: nil config")
	}
	if err := logger.InitLogger(&cfg.Config); err != nil {
		return fmt.Errorf("app: logger: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()
	return coredatabase.RunMigrations(cfg.Database, migrations.FS)
}

func assemble(cfg *Config, res *bootstrap.Result) (*App, error) {
	handlers, err := bootstrap.Provide[*bot.Handlers](context.Background(), Services, cfg, res)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	if handlers.Operators.Len() == 0 {
		logger.Warn(context.Background(), "app", "operators.empty",
			slog.String("reason", "ADMIN_IDS is empty; /stats and /broadcast are refused for everyone"),
		)
	}
	return &App{cfg: cfg, db: res.DB, handlers: handlers}, nil
}

// TelegramRunOptions builds routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	routes := router.Routes(reg, a.handlers, router.CommandRouteOptions{
		IsAdmin:       a.handlers.Operators.Allowed,
		OnAdminReject: a.handlers.Unauthorized,
	})

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.handlers.RateLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	clog := cronLogger{log: logger.Component("app")}
	a.cron = cron.New(cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)), cron.WithLogger(clog))
	if _, err := a.cron.AddFunc(a.cfg.Onboarding.SweepSpec, func() {
		a.handlers.SweepSessions(ctx)
	}); err != nil {
		return fmt.Errorf("app: schedule session sweep: %w", err)
	}
	a.cron.Start()
	logger.Info(ctx, "app", "sweeper.started",
		slog.String("spec", a.cfg.Onboarding.SweepSpec),
		slog.Duration("ttl", a.cfg.Onboarding.SessionTTL),
	)
	return nil
}

func (a *App) stop(_ context.Context, _ tg.Runtime) error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	return a.db.Close()
}

// cronLogger routes cron's internal logging into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, append([]interface{}{"event", "cron"}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{"event", "cron", "err", err}, keysAndValues...)...)
}
