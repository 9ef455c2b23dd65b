package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/earlybot/core/telegram/keyboard"
	"github.com/m3rciful/earlybot/internal/subscriber"
)

// Callback keys. The payload after the key carries the tag or region.
const (
	cbBegin  = "ob_begin"
	cbToggle = "ob_toggle"
	cbDone   = "ob_done"
	cbRegion = "ob_region"
	cbSkip   = "ob_skip"
)

func welcomeMarkup() *tele.ReplyMarkup {
	return keyboard.Column(
		keyboard.Button{Text: "🎯 Выбрать интересующие виды спорта", Unique: cbBegin},
		keyboard.Button{Text: "⏭️ Пропустить", Unique: cbSkip},
	)
}

func interestsMarkup(selected subscriber.InterestSet) *tele.ReplyMarkup {
	btns := make([]keyboard.Button, 0, len(subscriber.AllInterests))
	for _, i := range subscriber.AllInterests {
		mark := "⬜ "
		if selected.Has(i) {
			mark = "✅ "
		}
		btns = append(btns, keyboard.Button{Text: mark + interestLabels[i], Unique: cbToggle, Data: string(i)})
	}
	rows := append(keyboard.Chunk(2, btns), []keyboard.Button{{Text: "✅ Готово", Unique: cbDone}})
	return keyboard.Rows(rows...)
}

func regionMarkup() *tele.ReplyMarkup {
	btns := make([]keyboard.Button, 0, len(subscriber.AllRegions))
	for _, r := range subscriber.AllRegions {
		btns = append(btns, keyboard.Button{Text: regionLabels[r], Unique: cbRegion, Data: string(r)})
	}
	return keyboard.Column(btns...)
}
