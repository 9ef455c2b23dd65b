package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/earlybot/core/logger"
	tghelpers "github.com/m3rciful/earlybot/core/telegram/helpers"
	"github.com/m3rciful/earlybot/core/telegram/middleware"
	"github.com/m3rciful/earlybot/core/telegram/sender"
)

// summary is the single line logged when a routed handler returns.
type summary struct {
	handler string
	start   time.Time
	status  string
	attrs   []slog.Attr
}

func newSummary(handler string, attrs ...slog.Attr) *summary {
	return &summary{handler: handler, start: time.Now(), attrs: attrs}
}

// run tags the update context with the handler name, calls fn and logs.
func (s *summary) run(c tele.Context, fn tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.handler)
	var err error
	if fn == nil {
		s.status = "skip"
	} else {
		err = fn(c)
	}
	s.log(c, err)
	return err
}

func (s *summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)

	status := s.status
	switch {
	case err != nil:
		status = "fail"
	case status == "":
		status = "ok"
	}

	attrs := make([]slog.Attr, 0, len(s.attrs)+7)
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(s.start)).Milliseconds()),
	)
	attrs = append(attrs, s.attrs...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Event(ctx, "tg", level, "handler.handled", attrs...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers a code carried by the error itself and falls back to
// the transport classification.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(sender.ErrorKind(err))
}
