// Package subscriber owns the subscriber record and its persistence.
package subscriber

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no record exists for a platform user id.
var ErrNotFound = errors.New("subscriber not found")

// Interest is a sport tag a subscriber can follow.
type Interest string

const (
	InterestFootball   Interest = "football"
	InterestHockey     Interest = "hockey"
	InterestBasketball Interest = "basketball"
	InterestTennis     Interest = "tennis"
	InterestEsports    Interest = "esports"
	InterestMMA        Interest = "mma"
)

// AllInterests lists the interest tags in display order.
var AllInterests = []Interest{
	InterestFootball,
	InterestHockey,
	InterestBasketball,
	InterestTennis,
	InterestEsports,
	InterestMMA,
}

// Valid reports whether i belongs to the fixed enumeration.
func (i Interest) Valid() bool {
	for _, v := range AllInterests {
		if v == i {
			return true
		}
	}
	return false
}

// ParseInterest validates a raw tag.
func ParseInterest(s string) (Interest, error) {
	i := Interest(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", fmt.Errorf("unknown interest %q", s)
	}
	return i, nil
}

// Region selects which match coverage a subscriber wants.
type Region string

const (
	RegionAll    Region = "all"
	RegionRussia Region = "russia"
)

// AllRegions lists regions in display order.
var AllRegions = []Region{RegionRussia, RegionAll}

// Valid reports whether r belongs to the fixed enumeration.
func (r Region) Valid() bool {
	return r == RegionAll || r == RegionRussia
}

// ParseRegion validates a raw region value.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown region %q", s)
	}
	return r, nil
}

// InterestSet is an unordered set of interest tags. It is persisted as a
// JSON array in canonical (enumeration) order.
type InterestSet map[Interest]struct{}

// NewInterestSet builds a set from tags.
func NewInterestSet(tags ...Interest) InterestSet {
	s := make(InterestSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s InterestSet) Has(i Interest) bool {
	_, ok := s[i]
	return ok
}

// Toggle adds i when absent and removes it when present. It reports whether
// i is in the set afterwards.
func (s InterestSet) Toggle(i Interest) bool {
	if s.Has(i) {
		delete(s, i)
		return false
	}
	s[i] = struct{}{}
	return true
}

// Clone returns an independent copy.
func (s InterestSet) Clone() InterestSet {
	out := make(InterestSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the tags in enumeration order; unknown tags go last alphabetically.
func (s InterestSet) Sorted() []Interest {
	out := make([]Interest, 0, len(s))
	for _, i := range AllInterests {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	var extra []Interest
	for i := range s {
		if !i.Valid() {
			extra = append(extra, i)
		}
	}
	sort.Slice(extra, func(a, b int) bool { return extra[a] < extra[b] })
	return append(out, extra...)
}

// Value implements driver.Valuer.
func (s InterestSet) Value() (driver.Value, error) {
	tags := s.Sorted()
	if tags == nil {
		tags = []Interest{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *InterestSet) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = InterestSet{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("interests: unsupported type %T", src)
	}
	var tags []Interest
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &tags); err != nil {
			return fmt.Errorf("interests: %w", err)
		}
	}
	*s = NewInterestSet(tags...)
	return nil
}

// Profile carries the platform metadata captured on first contact.
type Profile struct {
	PlatformUserID int64
	DisplayName    string
	Handle         string
}

// Subscriber is one record per distinct platform user.
type Subscriber struct {
	ID                 int64       `db:"id"`
	PlatformUserID     int64       `db:"platform_user_id"`
	DisplayName        string      `db:"display_name"`
	Handle             string      `db:"handle"`
	Interests          InterestSet `db:"interests"`
	Region             Region      `db:"region"`
	IsActive           bool        `db:"is_active"`
	OnboardingComplete bool        `db:"onboarding_complete"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

// CompleteOnboarding marks onboarding done. There is no way back to false.
func (s *Subscriber) CompleteOnboarding() {
	s.OnboardingComplete = true
}

// Deactivate marks the subscriber undeliverable. There is no way back to true.
func (s *Subscriber) Deactivate() {
	s.IsActive = false
}
