package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/earlybot/core/telegram"
)

// Fallbacks answers updates that match no command, button or expected
// upload.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Routes returns the full route table for reg: commands, the callback
// dispatcher, then text and documents.
func Routes(reg *tg.Registry, fb Fallbacks, cmd CommandRouteOptions) []tg.Route {
	routes := CommandRoutes(reg, cmd)
	var (
		cbOpts   CallbackOptions
		textOpts TextOptions
	)
	if fb != nil {
		cbOpts.NotFound = fb.UnknownCallback()
		textOpts = TextOptions{UnknownText: fb.UnknownText(), UnknownDocument: fb.UnknownDocument()}
	}
	routes = append(routes, CallbackRoute(reg, cbOpts))
	return append(routes, TextRoutes(reg, textOpts)...)
}
