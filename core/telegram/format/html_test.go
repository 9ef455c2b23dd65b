package format

import "testing"

func TestEscapeHTML(t *testing.T) {
	got := EscapeHTML(`<b>Tom & "Jerry"</b>`)
	want := "&lt;b&gt;Tom &amp; &#34;Jerry&#34;&lt;/b&gt;"
	if got != want {
		t.Fatalf("EscapeHTML = %q, want %q", got, want)
	}
	if Bold("a<b") != "<b>a&lt;b</b>" {
		t.Fatalf("Bold = %q", Bold("a<b"))
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"привет", 3, "пр…"},
		{"x", 0, ""},
		{"xyz", 1, "…"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
