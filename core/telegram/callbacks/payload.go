package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits the raw "\f<unique>|<payload>" data telebot
// puts on inline buttons. The payload may be empty.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	key, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// Split returns the key and payload of cb whether or not telebot already
// matched the button to a registered endpoint.
func Split(cb *tele.Callback) (string, string) {
	if cb != nil && cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseCallbackData(cb)
}

// CallbackKey returns the key of the pressed button.
func CallbackKey(c tele.Context) string {
	k, _ := Split(c.Callback())
	return k
}

// CallbackPayload returns the payload of the pressed button.
func CallbackPayload(c tele.Context) string {
	_, payload := Split(c.Callback())
	return payload
}
