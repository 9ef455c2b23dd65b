package helpers

import (
	"errors"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/core/telegram/sender"
)

type stubContext struct {
	tele.Context
	mu      sync.Mutex
	store   map[string]interface{}
	cb      *tele.Callback
	msg     *tele.Message
	sent    []*tele.SendOptions
	editErr error
	resp    []*tele.CallbackResponse
}

func newStub() *stubContext {
	return &stubContext{
		store: map[string]interface{}{},
		msg:   &tele.Message{ID: 3, Chat: &tele.Chat{ID: 11}, Sender: &tele.User{ID: 22}},
	}
}

func (s *stubContext) Update() tele.Update             { return tele.Update{ID: 5, Message: s.msg} }
func (s *stubContext) Sender() *tele.User              { return s.msg.Sender }
func (s *stubContext) Chat() *tele.Chat                { return s.msg.Chat }
func (s *stubContext) Message() *tele.Message          { return s.msg }
func (s *stubContext) Callback() *tele.Callback        { return s.cb }
func (s *stubContext) Get(key string) interface{}      { return s.store[key] }
func (s *stubContext) Set(key string, val interface{}) { s.store[key] = val }
func (s *stubContext) Edit(interface{}, ...interface{}) error {
	return s.editErr
}
func (s *stubContext) Respond(resp ...*tele.CallbackResponse) error {
	s.resp = append(s.resp, resp...)
	return nil
}
func (s *stubContext) Send(_ interface{}, opts ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.sent = append(s.sent, so)
		}
	}
	return nil
}

func TestBuildContextCaches(t *testing.T) {
	c := newStub()
	ctx := BuildContext(c)
	if got := logger.RIDFrom(ctx); got != "5:11:22" {
		t.Fatalf("rid = %q", got)
	}
	if again := BuildContext(c); again != ctx {
		t.Fatal("context not cached")
	}
	if h := logger.HandlerFrom(WithHandler(c, "start")); h != "start" {
		t.Fatalf("handler = %q", h)
	}
	if BuildContext(nil) == nil {
		t.Fatal("nil context for nil tele.Context")
	}
}

func TestSendHTMLSyncAndQueued(t *testing.T) {
	c := newStub()
	rm := &tele.ReplyMarkup{}
	if err := SendHTML(c, "<b>hi</b>", rm); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 || c.sent[0].ParseMode != tele.ModeHTML || c.sent[0].ReplyMarkup != rm {
		t.Fatalf("sync send = %+v", c.sent)
	}

	d := sender.NewDispatcher(sender.Options{Workers: 1, QueueSize: 4})
	SetDispatcher(d)
	defer SetDispatcher(nil)
	if err := SendHTML(c, "queued"); err != nil {
		t.Fatal(err)
	}
	d.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) != 2 {
		t.Fatalf("queued send not delivered: %d", len(c.sent))
	}
}

func TestSendHTMLFallsBackWhenClosed(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	d.Close()
	SetDispatcher(d)
	defer SetDispatcher(nil)

	c := newStub()
	if err := SendHTML(c, "inline"); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent = %d, want inline fallback", len(c.sent))
	}
}

func TestEditMarkupIgnoresNotModified(t *testing.T) {
	c := newStub()
	c.editErr = &tele.Error{Code: 400, Description: "Bad Request: message is not modified"}
	if err := EditMarkup(c, &tele.ReplyMarkup{}); err != nil {
		t.Fatalf("not modified should be ignored: %v", err)
	}
	c.editErr = errors.New("boom")
	if err := EditMarkup(c, &tele.ReplyMarkup{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestToastOnlyForCallbacks(t *testing.T) {
	c := newStub()
	if err := Toast(c, "hi"); err != nil || len(c.resp) != 0 {
		t.Fatalf("toast without callback: %v %d", err, len(c.resp))
	}
	c.cb = &tele.Callback{ID: "1"}
	if err := Toast(c, "hi"); err != nil || len(c.resp) != 1 || c.resp[0].Text != "hi" {
		t.Fatalf("toast: %v %+v", err, c.resp)
	}
}
