package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/earlybot/core/telegram"
	"github.com/m3rciful/earlybot/core/telegram/middleware"
)

// TextOptions controls fallback behaviour for text and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes handles plain text and documents. Text naming a public command
// or one of its aliases runs that command; anything else goes to the
// registry fallback, then opts.UnknownText.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return newSummary(handlerName(key)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("fallback").run(c, fb)
			}
		}
		return newSummary("unknown_text").run(c, opts.UnknownText)
	}
	doc := func(c tele.Context) error {
		return newSummary("unexpected_document").run(c, opts.UnknownDocument)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(text)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(doc)),
		},
	}
}
