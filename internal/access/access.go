// Package access decides which platform users may run operator commands.
package access

import (
	"errors"

	coreconfig "github.com/m3rciful/earlybot/core/config"
)

// ErrUnauthorized is returned when a caller is not on the operator list.
var ErrUnauthorized = errors.New("caller is not an operator")

// List is the fixed set of operator ids loaded at startup. The zero value
// authorizes nobody.
type List struct {
	ids map[int64]struct{}
}

// NewList builds a List from configured ids. Duplicates collapse.
func NewList(ids coreconfig.IDList) *List {
	l := &List{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return l
}

// Allowed reports whether id is an operator.
func (l *List) Allowed(id int64) bool {
	if l == nil {
		return false
	}
	_, ok := l.ids[id]
	return ok
}

// Authorize returns ErrUnauthorized unless id is an operator.
func (l *List) Authorize(id int64) error {
	if !l.Allowed(id) {
		return ErrUnauthorized
	}
	return nil
}

// Len returns the number of distinct operators.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.ids)
}
