// Package delivery relays messages through the chat transport and reduces
// transport failures to a closed set of kinds.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/earlybot/core/telegram/netutil"
)

// Kind tells whether a recipient may be retried in a later run.
type Kind int

const (
	// KindTransient covers rate limits, network trouble and unknown API
	// errors. The recipient stays active.
	KindTransient Kind = iota
	// KindPermanent means the recipient blocked the bot or deleted the
	// account. The recipient is deactivated.
	KindPermanent
)

func (k Kind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

// Error is a classified delivery failure.
type Error struct {
	Kind      Kind
	Reason    string
	Recipient int64
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deliver to %d: %s (%s): %v", e.Recipient, e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsPermanent reports whether err carries a permanent delivery failure.
func IsPermanent(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == KindPermanent
}

// Classify maps a transport error onto a Kind plus a short reason for logs.
func Classify(err error) (Kind, string) {
	switch {
	case err == nil:
		return KindTransient, ""
	case errors.Is(err, tele.ErrBlockedByUser):
		return KindPermanent, "blocked"
	case errors.Is(err, tele.ErrUserIsDeactivated):
		return KindPermanent, "deactivated"
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindTransient, "flood"
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 403 {
			desc := strings.ToLower(apiErr.Description + " " + apiErr.Message)
			switch {
			case strings.Contains(desc, "blocked"):
				return KindPermanent, "blocked"
			case strings.Contains(desc, "deactivated"):
				return KindPermanent, "deactivated"
			}
		}
		return KindTransient, "api_" + strconv.Itoa(apiErr.Code)
	}

	if netutil.ShouldRetry(err) {
		return KindTransient, "network"
	}
	return KindTransient, "unknown"
}

// Wrap classifies err for recipient. A nil err stays nil.
func Wrap(recipient int64, err error) error {
	if err == nil {
		return nil
	}
	kind, reason := Classify(err)
	return &Error{Kind: kind, Reason: reason, Recipient: recipient, Err: err}
}

// MessageRef points at a message already present in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Copier is the slice of the bot API used for relaying.
type Copier interface {
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// Relayer copies a source message to recipients without a forward header.
type Relayer struct {
	api Copier
}

// NewRelayer wraps a bot API handle.
func NewRelayer(api Copier) *Relayer {
	return &Relayer{api: api}
}

// Relay copies src into the private chat of recipient. Failures come back
// as *Error.
func (r *Relayer) Relay(ctx context.Context, src MessageRef, recipient int64) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTransient, Reason: "canceled", Recipient: recipient, Err: err}
	}
	msg := tele.StoredMessage{
		MessageID: strconv.Itoa(src.MessageID),
		ChatID:    src.ChatID,
	}
	_, err := r.api.Copy(tele.ChatID(recipient), msg)
	return Wrap(recipient, err)
}
