package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/earlybot/core/telegram"
	"github.com/m3rciful/earlybot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	// IsAdmin guards commands flagged AdminOnly.
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command, operator
// commands guarded by opts.IsAdmin.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, def := range cmds {
		name := handlerName(endpoint)
		inner := def.Handler
		if def.AdminOnly {
			inner = guard(inner)
		}
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(func(c tele.Context) error {
				return newSummary(name).run(c, inner)
			})),
		})
	}

	tg.WireLog("routes.commands", slog.Int("commands", len(cmds)), slog.Int("callbacks", len(reg.ListCallbacks())))
	return routes
}
