// Package keyboard builds inline keyboards from plain button descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button. Unique routes the press and Data is the
// optional payload after it.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Column lays buttons out one per row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	rows := make([][]Button, len(buttons))
	for i, b := range buttons {
		rows[i] = []Button{b}
	}
	return Rows(rows...)
}

// Chunk splits buttons into rows of at most cols.
func Chunk(cols int, buttons []Button) [][]Button {
	if cols < 1 {
		cols = 1
	}
	rows := make([][]Button, 0, (len(buttons)+cols-1)/cols)
	for len(buttons) > 0 {
		n := min(cols, len(buttons))
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}

// Rows builds the markup from explicit rows.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		line := make([]tele.InlineButton, len(row))
		for j, b := range row {
			line[j] = *markup.Data(b.Text, b.Unique, b.Data).Inline()
		}
		markup.InlineKeyboard[i] = line
	}
	return markup
}
