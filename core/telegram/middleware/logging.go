package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/earlybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware builds the update context and logs one receipt line per
// update. It is applied both globally and per route; the context cached by
// the first pass marks the update as seen.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, seen := tghelpers.ContextFrom(c); !seen {
			ctx := tghelpers.BuildContext(c)
			c.Set(tghelpers.RIDKey, logger.RIDFrom(ctx))
			if logger.ShouldSampleDebug() {
				logReceipt(ctx, c)
			}
		}
		return next(c)
	}
}

func logReceipt(ctx context.Context, c tele.Context) {
	upd := c.Update()
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Split(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	logger.Debug(ctx, "tg", "update.received", attrs...)
}
