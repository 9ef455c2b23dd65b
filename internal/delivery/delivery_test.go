package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		reason string
	}{
		{"blocked sentinel", tele.ErrBlockedByUser, KindPermanent, "blocked"},
		{"deactivated sentinel", tele.ErrUserIsDeactivated, KindPermanent, "deactivated"},
		{"wrapped blocked", fmt.Errorf("copy: %w", tele.ErrBlockedByUser), KindPermanent, "blocked"},
		{"unknown 403 blocked", &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user in a new way"}, KindPermanent, "blocked"},
		{"403 other", &tele.Error{Code: 403, Description: "Forbidden: bot can't initiate conversation with a user"}, KindTransient, "api_403"},
		{"400", &tele.Error{Code: 400, Description: "Bad Request: message to copy not found"}, KindTransient, "api_400"},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindTransient, "network"},
		{"other", errors.New("boom"), KindTransient, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, reason := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(1, nil))

	err := Wrap(7, tele.ErrBlockedByUser)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(7), de.Recipient)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, tele.ErrBlockedByUser)

	assert.False(t, IsPermanent(Wrap(7, errors.New("timeout"))))
	assert.False(t, IsPermanent(errors.New("plain")))
}

type fakeCopier struct {
	to  tele.Recipient
	msg tele.Editable
	err error
}

func (f *fakeCopier) Copy(to tele.Recipient, msg tele.Editable, _ ...interface{}) (*tele.Message, error) {
	f.to, f.msg = to, msg
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{}, nil
}

func TestRelayer(t *testing.T) {
	api := &fakeCopier{}
	r := NewRelayer(api)
	require.NoError(t, r.Relay(context.Background(), MessageRef{ChatID: 100, MessageID: 5}, 42))

	assert.Equal(t, "42", api.to.Recipient())
	msgID, chatID := api.msg.MessageSig()
	assert.Equal(t, "5", msgID)
	assert.Equal(t, int64(100), chatID)

	api.err = tele.ErrUserIsDeactivated
	err := r.Relay(context.Background(), MessageRef{ChatID: 100, MessageID: 5}, 43)
	assert.True(t, IsPermanent(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Relay(ctx, MessageRef{}, 44)
	assert.False(t, IsPermanent(err))
	assert.ErrorIs(t, err, context.Canceled)
}
