package router

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/earlybot/core/telegram"
	"github.com/m3rciful/earlybot/core/telegram/commands"
)

type stubContext struct {
	tele.Context
	update    tele.Update
	store     map[string]interface{}
	responded int
}

func textUpdate(userID int64, text string) *stubContext {
	u := &tele.User{ID: userID}
	return &stubContext{
		update: tele.Update{ID: 3, Message: &tele.Message{Text: text, Sender: u, Chat: &tele.Chat{ID: userID}}},
		store:  map[string]interface{}{},
	}
}

func buttonUpdate(userID int64, data string) *stubContext {
	u := &tele.User{ID: userID}
	return &stubContext{
		update: tele.Update{ID: 4, Callback: &tele.Callback{ID: "cb", Data: data, Sender: u,
			Message: &tele.Message{Chat: &tele.Chat{ID: userID}}}},
		store: map[string]interface{}{},
	}
}

func (s *stubContext) Update() tele.Update      { return s.update }
func (s *stubContext) Callback() *tele.Callback { return s.update.Callback }
func (s *stubContext) Sender() *tele.User {
	if s.update.Callback != nil {
		return s.update.Callback.Sender
	}
	return s.update.Message.Sender
}
func (s *stubContext) Chat() *tele.Chat {
	if s.update.Callback != nil {
		return s.update.Callback.Message.Chat
	}
	return s.update.Message.Chat
}
func (s *stubContext) Text() string {
	if s.update.Message != nil {
		return s.update.Message.Text
	}
	return ""
}
func (s *stubContext) Get(key string) interface{}      { return s.store[key] }
func (s *stubContext) Set(key string, val interface{}) { s.store[key] = val }
func (s *stubContext) Respond(...*tele.CallbackResponse) error {
	s.responded++
	return nil
}

func TestCallbackRouteDispatchesAndAnswers(t *testing.T) {
	reg := tg.NewRegistry()
	var got string
	if err := reg.RegisterCallback("ob_toggle", func(c tele.Context) error {
		got = c.Callback().Data
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	route := CallbackRoute(reg, CallbackOptions{})
	if route.Endpoint != tele.OnCallback {
		t.Fatalf("endpoint = %q", route.Endpoint)
	}

	c := buttonUpdate(5, "\fob_toggle|tennis")
	if err := route.Handler(c); err != nil {
		t.Fatal(err)
	}
	if got != "\fob_toggle|tennis" {
		t.Fatalf("handler saw %q", got)
	}
	if c.responded != 1 {
		t.Fatalf("responded %d times, want 1", c.responded)
	}
}

func TestCallbackRoutePrefersNotFoundOption(t *testing.T) {
	reg := tg.NewRegistry()
	called := false
	route := CallbackRoute(reg, CallbackOptions{NotFound: func(tele.Context) error {
		called = true
		return nil
	}})
	c := buttonUpdate(5, "\fstale|x")
	if err := route.Handler(c); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("NotFound option not used")
	}
	if c.responded != 1 {
		t.Fatalf("responded %d times, want 1", c.responded)
	}
}

func TestCommandRoutesGuardOperators(t *testing.T) {
	reg := tg.NewRegistry()
	ran := map[string]int{}
	for name, admin := range map[string]bool{"/start": false, "/stats": true} {
		name := name
		if err := reg.RegisterCommand(name, commands.Command{
			Handler:     func(tele.Context) error { ran[name]++; return nil },
			Description: name,
			AdminOnly:   admin,
		}); err != nil {
			t.Fatal(err)
		}
	}
	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		IsAdmin:       func(id int64) bool { return id == 9 },
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	if len(routes) != 2 {
		t.Fatalf("got %d routes", len(routes))
	}
	byEndpoint := map[string]tele.HandlerFunc{}
	for _, r := range routes {
		byEndpoint[r.Endpoint.(string)] = r.Handler
	}

	_ = byEndpoint["/stats"](textUpdate(1, "/stats"))
	_ = byEndpoint["/stats"](textUpdate(9, "/stats"))
	_ = byEndpoint["/start"](textUpdate(1, "/start"))
	if rejected != 1 || ran["/stats"] != 1 || ran["/start"] != 1 {
		t.Fatalf("rejected=%d ran=%v", rejected, ran)
	}
}

func TestTextRoutesResolveAliases(t *testing.T) {
	reg := tg.NewRegistry()
	started := 0
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     func(tele.Context) error { started++; return nil },
		Description: "start",
		Aliases:     []string{"начать"},
	}); err != nil {
		t.Fatal(err)
	}
	unknown := 0
	routes := TextRoutes(reg, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})
	if len(routes) != 2 {
		t.Fatalf("got %d routes", len(routes))
	}
	text := routes[0].Handler

	_ = text(textUpdate(2, "начать"))
	_ = text(textUpdate(2, "what is this"))
	if started != 1 || unknown != 1 {
		t.Fatalf("started=%d unknown=%d", started, unknown)
	}

	if err := routes[1].Handler(textUpdate(2, "")); err != nil {
		t.Fatalf("document without handler: %v", err)
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "quota" }
func (codedErr) Code() string  { return "quota exceeded" }

func TestErrorCode(t *testing.T) {
	if got := errorCode(codedErr{}); got != "QUOTA_EXCEEDED" {
		t.Fatalf("coded = %q", got)
	}
	if got := errorCode(errors.New("x")); got != "UNKNOWN" {
		t.Fatalf("plain = %q", got)
	}
	if got := handlerName(" /Start "); got != "start" {
		t.Fatalf("handlerName = %q", got)
	}
}

type fallbacks struct{ texts, docs, buttons int }

func (f *fallbacks) UnknownText() tele.HandlerFunc {
	return func(tele.Context) error { f.texts++; return nil }
}
func (f *fallbacks) UnknownDocument() tele.HandlerFunc {
	return func(tele.Context) error { f.docs++; return nil }
}
func (f *fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(tele.Context) error { f.buttons++; return nil }
}

func TestRoutesUsesFallbacks(t *testing.T) {
	reg := tg.NewRegistry()
	fb := &fallbacks{}
	routes := Routes(reg, fb, CommandRouteOptions{})
	if len(routes) != 3 {
		t.Fatalf("got %d routes", len(routes))
	}
	_ = routes[0].Handler(buttonUpdate(1, "\fgone"))
	_ = routes[1].Handler(textUpdate(1, "hello"))
	_ = routes[2].Handler(textUpdate(1, ""))
	if fb.buttons != 1 || fb.texts != 1 || fb.docs != 1 {
		t.Fatalf("fallbacks = %+v", *fb)
	}
}
