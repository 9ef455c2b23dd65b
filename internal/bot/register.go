package bot

import (
	"errors"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/earlybot/core/telegram"
	"github.com/m3rciful/earlybot/core/telegram/commands"
)

// Register adds every command and callback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	var errs []error
	errs = append(errs, reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Записаться на ранний доступ",
	}))
	errs = append(errs, reg.RegisterCommand("/stats", commands.Command{
		Handler:     h.Stats,
		Description: "Статистика подписчиков",
		AdminOnly:   true,
	}))
	errs = append(errs, reg.RegisterCommand("/broadcast", commands.Command{
		Handler:     h.Broadcast,
		Description: "Рассылка сообщений",
		AdminOnly:   true,
	}))
	errs = append(errs, reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "Справка",
		Hidden:      true,
	}))

	for key, fn := range map[string]tele.HandlerFunc{
		cbBegin:  h.Begin,
		cbToggle: h.Toggle,
		cbDone:   h.Done,
		cbRegion: h.Region,
		cbSkip:   h.Skip,
	} {
		errs = append(errs, reg.RegisterCallback(key, fn))
	}
	reg.SetCallbackNotFound(h.UnknownCallback())
	return errors.Join(errs...)
}
