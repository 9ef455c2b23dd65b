package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		data, key, payload string
	}{
		{"\fob_toggle|football", "ob_toggle", "football"},
		{"ob_done", "ob_done", ""},
		{"\fob_region|all|extra", "ob_region", "all|extra"},
	}
	for _, tc := range cases {
		key, payload := ParseCallbackData(&tele.Callback{Data: tc.data})
		if key != tc.key || payload != tc.payload {
			t.Errorf("ParseCallbackData(%q) = %q, %q; want %q, %q", tc.data, key, payload, tc.key, tc.payload)
		}
	}
	if k, p := ParseCallbackData(nil); k != "" || p != "" {
		t.Errorf("nil callback parsed to %q, %q", k, p)
	}
}

func TestSplit(t *testing.T) {
	if k, p := Split(&tele.Callback{Unique: "ob_toggle", Data: "mma"}); k != "ob_toggle" || p != "mma" {
		t.Fatalf("matched: %q %q", k, p)
	}
	if k, p := Split(&tele.Callback{Data: "\fob_region|moscow"}); k != "ob_region" || p != "moscow" {
		t.Fatalf("raw: %q %q", k, p)
	}
	if k, p := Split(nil); k != "" || p != "" {
		t.Fatalf("nil: %q %q", k, p)
	}
}
