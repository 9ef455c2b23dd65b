package config

import (
	"fmt"
	"strconv"
	"strings"
)

// IDList is a set of Telegram user identifiers read from a comma-separated
// environment value. An empty value yields an empty list.
type IDList []int64

// Decode implements envconfig.Decoder.
func (l *IDList) Decode(value string) error {
	ids, err := ParseIDList(value)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

// Contains reports whether id is present in the list.
func (l IDList) Contains(id int64) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// ParseIDList splits a comma-separated list of integer identifiers.
// Blank items are skipped.
func ParseIDList(value string) (IDList, error) {
	out := IDList{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}
