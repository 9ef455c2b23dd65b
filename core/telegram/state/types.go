package state

import (
	"errors"
	"time"
)

// State identifies a conversation step.
type State string

// ErrNoSession is returned when a user has no live session.
var ErrNoSession = errors.New("no active session")

// Session is a user's conversation step and the data collected so far.
type Session[T any] struct {
	State     State
	Data      T
	UpdatedAt time.Time
}

// Options configures a Manager.
type Options struct {
	// TTL evicts sessions idle for longer than this; 0 keeps them forever.
	TTL time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}
