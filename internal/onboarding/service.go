// Package onboarding drives the preference dialog that turns a first contact
// into a completed subscriber profile.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/core/telegram/state"
	"github.com/m3rciful/earlybot/internal/subscriber"
)

const component = "service.onboarding"

// Dialog steps.
const (
	StateAwaitingEntry      state.State = "awaiting_entry"
	StateSelectingInterests state.State = "selecting_interests"
	StateSelectingRegion    state.State = "selecting_region"
	StateComplete           state.State = "complete"
)

// ErrNoSession is returned when an interest toggle arrives without a live
// selection session, for example after the session expired.
var ErrNoSession = errors.New("onboarding: no active selection session")

// DefaultSessionTTL bounds how long an abandoned selection is kept.
const DefaultSessionTTL = 30 * time.Minute

// Store is the subset of the subscriber store used by the dialog.
type Store interface {
	CreateIfAbsent(ctx context.Context, p subscriber.Profile) (*subscriber.Subscriber, error)
	Update(ctx context.Context, id int64, mutate func(*subscriber.Subscriber) error) (*subscriber.Subscriber, error)
}

// Config tunes session handling.
type Config struct {
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"ONBOARDING_SESSION_TTL"`
	SweepSpec  string        `yaml:"sweep_spec" envconfig:"ONBOARDING_SWEEP_SPEC"`
}

// Normalize fills defaults.
func (c *Config) Normalize() error {
	if c.SessionTTL < 0 {
		return fmt.Errorf("onboarding.session_ttl must be >= 0")
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SweepSpec == "" {
		c.SweepSpec = "@every 1m"
	}
	return nil
}

// Screen describes what the user should see after an action.
type Screen struct {
	State state.State
	// Returning is set when Start finds an already onboarded subscriber.
	Returning bool
	// Skipped is set when the dialog was completed through Skip.
	Skipped  bool
	Selected subscriber.InterestSet
	Region   subscriber.Region
}

// Service is the onboarding state machine. Staged interests live in an
// in-memory session until the region is chosen; the store is written once per
// completed or skipped dialog.
type Service struct {
	store    Store
	sessions *state.Manager[subscriber.InterestSet]
}

// NewService wires the state machine. cfg should be normalized.
func NewService(store Store, cfg Config) *Service {
	return &Service{
		store:    store,
		sessions: state.NewManager[subscriber.InterestSet](state.Options{TTL: cfg.SessionTTL}),
	}
}

// Start handles first contact and re-entry.
func (s *Service) Start(ctx context.Context, p subscriber.Profile) (Screen, error) {
	sub, err := s.store.CreateIfAbsent(ctx, p)
	if err != nil {
		return Screen{}, err
	}
	if sub.OnboardingComplete {
		return Screen{State: StateComplete, Returning: true, Selected: sub.Interests, Region: sub.Region}, nil
	}
	s.sessions.Clear(p.PlatformUserID)
	s.log(ctx, "onboarding.entry", p.PlatformUserID, StateAwaitingEntry)
	return Screen{State: StateAwaitingEntry}, nil
}

// BeginSelection opens a fresh, empty selection session, replacing any older one.
func (s *Service) BeginSelection(ctx context.Context, userID int64) Screen {
	s.sessions.Put(userID, StateSelectingInterests, subscriber.InterestSet{})
	s.log(ctx, "onboarding.begin", userID, StateSelectingInterests)
	return Screen{State: StateSelectingInterests, Selected: subscriber.InterestSet{}}
}

// ToggleInterest flips tag in the staged set.
func (s *Service) ToggleInterest(ctx context.Context, userID int64, tag subscriber.Interest) (Screen, error) {
	if !tag.Valid() {
		return Screen{}, fmt.Errorf("onboarding: unknown interest %q", tag)
	}
	var (
		selected subscriber.InterestSet
		checked  bool
	)
	err := s.sessions.With(userID, func(sess *state.Session[subscriber.InterestSet]) error {
		if sess.State != StateSelectingInterests {
			return ErrNoSession
		}
		if sess.Data == nil {
			sess.Data = subscriber.InterestSet{}
		}
		checked = sess.Data.Toggle(tag)
		selected = sess.Data.Clone()
		return nil
	})
	if errors.Is(err, state.ErrNoSession) {
		err = ErrNoSession
	}
	if err != nil {
		return Screen{}, err
	}
	logger.Debug(ctx, component, "onboarding.toggle",
		slog.Int64("platform_user_id", userID),
		slog.String("interest", string(tag)),
		slog.Bool("checked", checked),
	)
	return Screen{State: StateSelectingInterests, Selected: selected}, nil
}

// FinishInterests moves on to the region question. Nothing is committed yet.
// A missing session is tolerated: the region step will commit an empty set.
func (s *Service) FinishInterests(ctx context.Context, userID int64) Screen {
	selected := subscriber.InterestSet{}
	_ = s.sessions.With(userID, func(sess *state.Session[subscriber.InterestSet]) error {
		sess.State = StateSelectingRegion
		if sess.Data != nil {
			selected = sess.Data.Clone()
		}
		return nil
	})
	s.log(ctx, "onboarding.interests_done", userID, StateSelectingRegion)
	return Screen{State: StateSelectingRegion, Selected: selected}
}

// ChooseRegion commits the staged interests and region and completes the
// dialog. Without a session the interests are committed as an empty set.
func (s *Service) ChooseRegion(ctx context.Context, p subscriber.Profile, region subscriber.Region) (Screen, error) {
	if !region.Valid() {
		return Screen{}, fmt.Errorf("onboarding: unknown region %q", region)
	}
	interests := subscriber.InterestSet{}
	_ = s.sessions.With(p.PlatformUserID, func(sess *state.Session[subscriber.InterestSet]) error {
		if sess.Data != nil {
			interests = sess.Data.Clone()
		}
		return nil
	})
	sub, err := s.commit(ctx, p, func(sub *subscriber.Subscriber) error {
		sub.Interests = interests
		sub.Region = region
		sub.CompleteOnboarding()
		return nil
	})
	if err != nil {
		return Screen{}, err
	}
	s.sessions.Clear(p.PlatformUserID)
	logger.Info(ctx, component, "onboarding.complete",
		slog.String("status", "ok"),
		slog.Int64("platform_user_id", p.PlatformUserID),
		slog.String("region", string(region)),
		slog.Int("interests", len(interests)),
	)
	return Screen{State: StateComplete, Selected: sub.Interests, Region: sub.Region}, nil
}

// Skip completes the dialog without capturing preferences.
func (s *Service) Skip(ctx context.Context, p subscriber.Profile) (Screen, error) {
	sub, err := s.commit(ctx, p, func(sub *subscriber.Subscriber) error {
		sub.CompleteOnboarding()
		return nil
	})
	if err != nil {
		return Screen{}, err
	}
	s.sessions.Clear(p.PlatformUserID)
	logger.Info(ctx, component, "onboarding.skip",
		slog.String("status", "ok"),
		slog.Int64("platform_user_id", p.PlatformUserID),
	)
	return Screen{State: StateComplete, Skipped: true, Selected: sub.Interests, Region: sub.Region}, nil
}

// SweepSessions evicts expired selection sessions.
func (s *Service) SweepSessions(ctx context.Context) int {
	n := s.sessions.Sweep()
	if n > 0 {
		logger.Debug(ctx, component, "onboarding.sweep",
			slog.Int("evicted", n),
			slog.Int("sessions", s.sessions.Len()),
		)
	}
	return n
}

// commit updates the record, creating it first when it is missing.
func (s *Service) commit(ctx context.Context, p subscriber.Profile, mutate func(*subscriber.Subscriber) error) (*subscriber.Subscriber, error) {
	sub, err := s.store.Update(ctx, p.PlatformUserID, mutate)
	if !errors.Is(err, subscriber.ErrNotFound) {
		return sub, err
	}
	if _, err := s.store.CreateIfAbsent(ctx, p); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, p.PlatformUserID, mutate)
}

func (s *Service) log(ctx context.Context, event string, userID int64, st state.State) {
	logger.Debug(ctx, component, event,
		slog.Int64("platform_user_id", userID),
		slog.String("step", string(st)),
	)
}
