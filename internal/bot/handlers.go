// Package bot binds the onboarding, report and broadcast services to
// Telegram updates.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/earlybot/core/telegram/helpers"
	"github.com/m3rciful/earlybot/internal/access"
	"github.com/m3rciful/earlybot/internal/broadcast"
	"github.com/m3rciful/earlybot/internal/delivery"
	"github.com/m3rciful/earlybot/internal/onboarding"
	"github.com/m3rciful/earlybot/internal/report"
	"github.com/m3rciful/earlybot/internal/subscriber"
)

// Handlers holds the services reachable from chat.
type Handlers struct {
	Onboarding *onboarding.Service
	Reports    *report.Service
	Broadcasts *broadcast.Engine
	Operators  *access.List
}

func profileOf(c tele.Context) subscriber.Profile {
	u := c.Sender()
	if u == nil {
		return subscriber.Profile{}
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	return subscriber.Profile{
		PlatformUserID: u.ID,
		DisplayName:    name,
		Handle:         u.Username,
	}
}

// fail tells the user something went wrong and hands err back for the
// handler summary log.
func fail(c tele.Context, err error) error {
	if c.Callback() != nil {
		_ = tghelpers.Toast(c, genericFailure)
		return err
	}
	_ = tghelpers.SendHTML(c, genericFailure)
	return err
}

// Start handles /start.
func (h *Handlers) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	scr, err := h.Onboarding.Start(ctx, profileOf(c))
	if err != nil {
		return fail(c, err)
	}
	if scr.Returning {
		return tghelpers.SendHTML(c, welcomeBackText)
	}
	return tghelpers.SendHTML(c, welcomeText, welcomeMarkup())
}

// Begin opens the interest checklist.
func (h *Handlers) Begin(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	scr := h.Onboarding.BeginSelection(ctx, profileOf(c).PlatformUserID)
	return tghelpers.EditOrSendHTML(c, interestsText, interestsMarkup(scr.Selected))
}

// Toggle flips one interest and redraws the checklist.
func (h *Handlers) Toggle(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	tag, err := subscriber.ParseInterest(callbacks.CallbackPayload(c))
	if err != nil {
		_ = tghelpers.Toast(c, unknownActionText)
		return nil
	}
	scr, err := h.Onboarding.ToggleInterest(ctx, profileOf(c).PlatformUserID, tag)
	if errors.Is(err, onboarding.ErrNoSession) {
		return c.Respond(&tele.CallbackResponse{Text: sessionLostToast, ShowAlert: true})
	}
	if err != nil {
		return fail(c, err)
	}
	return tghelpers.EditMarkup(c, interestsMarkup(scr.Selected))
}

// Done moves from interests to the region question.
func (h *Handlers) Done(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.Onboarding.FinishInterests(ctx, profileOf(c).PlatformUserID)
	return tghelpers.EditOrSendHTML(c, regionText, regionMarkup())
}

// Region commits the dialog.
func (h *Handlers) Region(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	region, err := subscriber.ParseRegion(callbacks.CallbackPayload(c))
	if err != nil {
		_ = tghelpers.Toast(c, unknownActionText)
		return nil
	}
	if _, err := h.Onboarding.ChooseRegion(ctx, profileOf(c), region); err != nil {
		return fail(c, err)
	}
	if err := tghelpers.EditOrSendHTML(c, completeText); err != nil {
		return err
	}
	return tghelpers.Toast(c, savedToast)
}

// Skip completes the dialog without preferences.
func (h *Handlers) Skip(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if _, err := h.Onboarding.Skip(ctx, profileOf(c)); err != nil {
		return fail(c, err)
	}
	return tghelpers.EditOrSendHTML(c, skippedText)
}

// Stats handles /stats.
func (h *Handlers) Stats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	r, err := h.Reports.Build(ctx, profileOf(c).PlatformUserID)
	if errors.Is(err, access.ErrUnauthorized) {
		return h.Unauthorized(c)
	}
	if err != nil {
		return fail(c, err)
	}
	return tghelpers.SendHTML(c, statsText(r))
}

// Broadcast handles /broadcast sent as a reply to the message to relay.
func (h *Handlers) Broadcast(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil {
		return tghelpers.SendHTML(c, broadcastUsageText)
	}
	req := broadcast.Request{
		Caller: profileOf(c).PlatformUserID,
		Source: delivery.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ReplyTo.ID},
		OnStart: func(total int) {
			text := broadcastStartText(total)
			if total == 0 {
				text = noRecipientsText
			}
			if err := c.Send(text); err != nil {
				logger.Warn(ctx, "service.broadcast", "broadcast.announce_failed",
					slog.String("err", err.Error()),
				)
			}
		},
	}
	res, err := h.Broadcasts.Broadcast(ctx, delivery.NewRelayer(c.Bot()), req)
	if errors.Is(err, access.ErrUnauthorized) {
		return h.Unauthorized(c)
	}
	if err != nil {
		return fail(c, err)
	}
	if res.Total == 0 {
		return nil
	}
	return c.Send(broadcastDoneText(res), tele.ModeHTML)
}

// Help lists operator commands. Other users get no answer.
func (h *Handlers) Help(c tele.Context) error {
	if !h.Operators.Allowed(profileOf(c).PlatformUserID) {
		return nil
	}
	return tghelpers.SendHTML(c, helpText)
}

// Unauthorized is the refusal shown to non-operators.
func (h *Handlers) Unauthorized(c tele.Context) error {
	return tghelpers.SendHTML(c, unauthorizedText)
}

// UnknownText points users back to /start.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendHTML(c, startHintText)
	}
}

// UnknownDocument ignores uploads.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(tele.Context) error { return nil }
}

// UnknownCallback answers buttons from keyboards that are no longer served.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Toast(c, unknownActionText)
	}
}

// RateLimited answers throttled button presses; throttled messages are dropped.
func (h *Handlers) RateLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return tghelpers.Toast(c, slowDownToast)
}

// SweepSessions is run periodically to drop abandoned onboarding sessions.
func (h *Handlers) SweepSessions(ctx context.Context) int {
	return h.Onboarding.SweepSessions(ctx)
}
