package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	update    tele.Update
	store     map[string]interface{}
	sends     int
	responded int
}

func newStub(userID int64) *stubContext {
	u := &tele.User{ID: userID, Username: "ann"}
	return &stubContext{
		update: tele.Update{ID: 10, Message: &tele.Message{Text: "hi", Sender: u, Chat: &tele.Chat{ID: userID}}},
		store:  map[string]interface{}{},
	}
}

func (s *stubContext) Update() tele.Update             { return s.update }
func (s *stubContext) Sender() *tele.User              { return s.update.Message.Sender }
func (s *stubContext) Chat() *tele.Chat                { return s.update.Message.Chat }
func (s *stubContext) Text() string                    { return s.update.Message.Text }
func (s *stubContext) Get(key string) interface{}      { return s.store[key] }
func (s *stubContext) Set(key string, val interface{}) { s.store[key] = val }
func (s *stubContext) Send(interface{}, ...interface{}) error {
	s.sends++
	return nil
}
func (s *stubContext) Respond(...*tele.CallbackResponse) error {
	s.responded++
	return nil
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newStub(1)); err == nil {
		t.Fatal("expected error from recovered panic")
	}
	ok := RecoverMiddleware(func(tele.Context) error { return nil })
	if err := ok(newStub(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var passed, rejected int
	mw := AdminOnlyMiddleware(AdminOptions{
		IsAdmin:  func(id int64) bool { return id == 7 },
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(newStub(7))
	_ = h(newStub(8))
	if passed != 1 || rejected != 1 {
		t.Fatalf("passed=%d rejected=%d", passed, rejected)
	}

	closed := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed++; return nil })
	_ = closed(newStub(7))
	if passed != 1 {
		t.Fatal("nil IsAdmin must reject everyone")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	for i := 0; i < 3; i++ {
		_ = h(newStub(1))
	}
	_ = h(newStub(2))
	if handled != 2 || limited != 2 {
		t.Fatalf("handled=%d limited=%d", handled, limited)
	}

	skip := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 3; i++ {
		_ = skip(newStub(1))
	}
	if handled != 5 {
		t.Fatalf("excluded kind must bypass the limit, handled=%d", handled)
	}
}

func TestMetricsCountsAndResponded(t *testing.T) {
	stub := newStub(1)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("one")
		_ = c.Send("two", &tele.ReplyMarkup{})
		return c.Respond()
	})
	if err := h(stub); err != nil {
		t.Fatal(err)
	}
	n, kb := GetCounters(stub)
	if n != 2 || !kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}
	if !Responded(stub) || stub.responded != 1 {
		t.Fatal("respond not tracked")
	}
	if Responded(newStub(2)) {
		t.Fatal("fresh context must not be responded")
	}
}

func TestLoggerMiddlewareBuildsContextOnce(t *testing.T) {
	stub := newStub(42)
	var rids []interface{}
	inner := func(c tele.Context) error {
		rids = append(rids, c.Get("rid"))
		return errors.New("done")
	}
	h := LoggerMiddleware(LoggerMiddleware(inner))
	if err := h(stub); err == nil || err.Error() != "done" {
		t.Fatalf("handler error not propagated: %v", err)
	}
	if len(rids) != 1 || rids[0] != "10:42:42" {
		t.Fatalf("rid = %v", rids)
	}
}
