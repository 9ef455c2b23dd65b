package helpers

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes SendHTML through d; nil makes sends synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// enqueue hands run to the dispatcher. When the queue cannot take it the
// call runs inline so the user still gets an answer.
func enqueue(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendHTML sends an HTML message with an optional inline keyboard to the
// current chat through the dispatcher.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return enqueue(c, "send.html", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// EditOrSendHTML edits the message under a pressed button (HTML) or sends a
// new one when there is nothing to edit. Edits are synchronous so the
// callback answer follows the visible change.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return c.EditOrSend(text, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: rm})
}

// EditMarkup replaces only the inline keyboard of the callback message.
func EditMarkup(c tele.Context, markup *tele.ReplyMarkup) error {
	if c.Message() == nil {
		return nil
	}
	err := c.Edit(markup)
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "not modified") {
		return nil
	}
	return err
}

// Toast answers the current callback with a short notification.
func Toast(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
