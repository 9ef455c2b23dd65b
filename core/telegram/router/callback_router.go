package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/earlybot/core/telegram"
	"github.com/m3rciful/earlybot/core/telegram/callbacks"
	"github.com/m3rciful/earlybot/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers buttons with no registered handler. When nil the
	// registry fallback is used.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the single OnCallback route that dispatches every
// button press through reg.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.Split(c.Callback())

		// Telegram keeps the button spinner until the callback is answered.
		defer func() {
			if !middleware.Responded(c) {
				_ = c.Respond()
			}
		}()

		s := newSummary("callback."+handlerName(key), slog.String("cb_key", key))
		if fn, ok := reg.GetCallback(key); ok {
			return s.run(c, fn)
		}
		s.attrs = append(s.attrs, slog.String("reason", "not_found"))
		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		return s.run(c, fallback)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
