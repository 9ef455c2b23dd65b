package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/earlybot/core/config"
	"github.com/m3rciful/earlybot/core/logger"
	tghelpers "github.com/m3rciful/earlybot/core/telegram/helpers"
	tgsender "github.com/m3rciful/earlybot/core/telegram/sender"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// DispatcherOptions default to the sender section of Config.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool
	// SkipCommandMenu leaves the Telegram command menu untouched.
	SkipCommandMenu bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is cancelled. OnStop always runs once serving began.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	started := time.Now()
	poller := BuildPoller(pollerOptions(cfg))
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(httpOptions(cfg)),
		OnError: onError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(ctx, poller, time.Since(started))

	if _, polling := poller.(*tele.LongPoller); polling && !opts.DisableWebhookCleanup {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, "tg", "webhook.delete_failed", slog.String("err", err.Error()))
		} else {
			logger.Info(ctx, "tg", "webhook.deleted")
		}
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dopts := opts.DispatcherOptions
		if dopts == (tgsender.Options{}) {
			dopts = dispatcherOptions(cfg)
		}
		dispatcher = tgsender.NewDispatcher(dopts)
	}
	shared := !opts.DisableHelperDispatcher
	if shared {
		tghelpers.SetDispatcher(dispatcher)
	}
	release := func() {
		dispatcher.Close()
		if shared {
			tghelpers.SetDispatcher(nil)
		}
	}

	install(bot, opts)
	if !opts.SkipCommandMenu {
		InitBotCommands(bot, reg)
	}

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runErr := serve(ctx, bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	release()
	if stopErr != nil {
		return stopErr
	}
	return runErr
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
}

// serve blocks until the poller stops or ctx ends. Cancellation is a clean
// shutdown; a deadline is reported.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

// onError catches errors that escape the route chain.
func onError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "handler.unhandled",
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", tgsender.ErrorKind(err)),
	)
}

func logMode(ctx context.Context, poller tele.Poller, took time.Duration) {
	attrs := []slog.Attr{slog.Duration("duration", logger.RoundMS(took))}
	switch p := poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
		)
	}
	logger.Info(ctx, "tg", "bot.mode", attrs...)
}

func pollerOptions(cfg *coreconfig.Config) PollerOptions {
	return PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen:      cfg.Webhook.Listen,
			Port:        cfg.Webhook.Port,
			URL:         cfg.Webhook.URL,
			SecretToken: cfg.Webhook.SecretToken,
		},
	}
}

func dispatcherOptions(cfg *coreconfig.Config) tgsender.Options {
	sc := cfg.Sender
	return tgsender.Options{
		QueueSize:    sc.QueueSize,
		Workers:      sc.Workers,
		MaxRetries:   sc.MaxRetries,
		RetryBackoff: time.Duration(sc.RetryBackoffMS) * time.Millisecond,
	}
}

// httpOptions keeps the client timeout above the long-poll wait so idle
// polls are not cut short.
func httpOptions(cfg *coreconfig.Config) HTTPOptions {
	timeout := time.Duration(cfg.Sender.HTTPTimeoutMS) * time.Millisecond
	if poll := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second; poll > 0 && timeout < poll+10*time.Second {
		timeout = poll + 10*time.Second
	}
	return HTTPOptions{Timeout: timeout}
}
