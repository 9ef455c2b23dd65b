package onboarding

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/earlybot/core/database"
	"github.com/m3rciful/earlybot/internal/subscriber"
	"github.com/m3rciful/earlybot/migrations"
)

func newStore(t *testing.T) *subscriber.Store {
	t.Helper()
	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "onboarding.db"),
	}
	require.NoError(t, coredatabase.RunMigrations(cfg, migrations.FS))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return subscriber.NewStore(db)
}

func newService(t *testing.T, store Store) *Service {
	t.Helper()
	cfg := Config{}
	require.NoError(t, cfg.Normalize())
	return NewService(store, cfg)
}

func TestOnboardingFullFlow(t *testing.T) {
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()
	p := subscriber.Profile{PlatformUserID: 42, DisplayName: "Ann", Handle: "ann"}

	scr, err := svc.Start(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingEntry, scr.State)
	assert.False(t, scr.Returning)

	scr = svc.BeginSelection(ctx, 42)
	assert.Equal(t, StateSelectingInterests, scr.State)
	assert.Empty(t, scr.Selected)

	_, err = svc.ToggleInterest(ctx, 42, subscriber.InterestFootball)
	require.NoError(t, err)
	scr, err = svc.ToggleInterest(ctx, 42, subscriber.InterestTennis)
	require.NoError(t, err)
	assert.True(t, scr.Selected.Has(subscriber.InterestFootball))
	assert.True(t, scr.Selected.Has(subscriber.InterestTennis))

	// Nothing is written before the region is chosen.
	rec, err := store.GetByPlatformID(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, rec.Interests)
	assert.False(t, rec.OnboardingComplete)

	scr = svc.FinishInterests(ctx, 42)
	assert.Equal(t, StateSelectingRegion, scr.State)

	scr, err = svc.ChooseRegion(ctx, p, subscriber.RegionRussia)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, scr.State)

	rec, err = store.GetByPlatformID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, subscriber.NewInterestSet(subscriber.InterestFootball, subscriber.InterestTennis), rec.Interests)
	assert.Equal(t, subscriber.RegionRussia, rec.Region)
	assert.True(t, rec.OnboardingComplete)
	assert.Zero(t, svc.sessions.Len())

	scr, err = svc.Start(ctx, p)
	require.NoError(t, err)
	assert.True(t, scr.Returning)
	assert.Equal(t, StateComplete, scr.State)
}

func TestSkipLeavesDefaults(t *testing.T) {
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()
	p := subscriber.Profile{PlatformUserID: 5}

	_, err := svc.Start(ctx, p)
	require.NoError(t, err)
	svc.BeginSelection(ctx, 5)
	_, err = svc.ToggleInterest(ctx, 5, subscriber.InterestHockey)
	require.NoError(t, err)

	scr, err := svc.Skip(ctx, p)
	require.NoError(t, err)
	assert.True(t, scr.Skipped)

	rec, err := store.GetByPlatformID(ctx, 5)
	require.NoError(t, err)
	assert.True(t, rec.OnboardingComplete)
	assert.Empty(t, rec.Interests)
	assert.Equal(t, subscriber.RegionAll, rec.Region)
	assert.Zero(t, svc.sessions.Len())
}

func TestToggleWithoutSession(t *testing.T) {
	svc := newService(t, newStore(t))
	_, err := svc.ToggleInterest(context.Background(), 1, subscriber.InterestFootball)
	assert.ErrorIs(t, err, ErrNoSession)

	svc.BeginSelection(context.Background(), 1)
	svc.FinishInterests(context.Background(), 1)
	_, err = svc.ToggleInterest(context.Background(), 1, subscriber.InterestFootball)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestToggleRejectsUnknownTag(t *testing.T) {
	svc := newService(t, newStore(t))
	svc.BeginSelection(context.Background(), 1)
	_, err := svc.ToggleInterest(context.Background(), 1, "chess")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestRegionWithoutSessionCommitsEmptySet(t *testing.T) {
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()
	p := subscriber.Profile{PlatformUserID: 8}

	_, err := svc.Start(ctx, p)
	require.NoError(t, err)
	scr := svc.FinishInterests(ctx, 8)
	assert.Empty(t, scr.Selected)

	_, err = svc.ChooseRegion(ctx, p, subscriber.RegionAll)
	require.NoError(t, err)
	rec, err := store.GetByPlatformID(ctx, 8)
	require.NoError(t, err)
	assert.True(t, rec.OnboardingComplete)
	assert.Empty(t, rec.Interests)
}

func TestBeginSelectionReplacesStaleSession(t *testing.T) {
	svc := newService(t, newStore(t))
	ctx := context.Background()
	svc.BeginSelection(ctx, 3)
	_, err := svc.ToggleInterest(ctx, 3, subscriber.InterestMMA)
	require.NoError(t, err)

	scr := svc.BeginSelection(ctx, 3)
	assert.Empty(t, scr.Selected)
	scr, err = svc.ToggleInterest(ctx, 3, subscriber.InterestEsports)
	require.NoError(t, err)
	assert.Equal(t, subscriber.NewInterestSet(subscriber.InterestEsports), scr.Selected)
}

func TestToggleSymmetry(t *testing.T) {
	svc := newService(t, newStore(t))
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		svc.BeginSelection(ctx, 9)
		want := subscriber.InterestSet{}
		var last Screen
		steps := 1 + rng.Intn(20)
		for i := 0; i < steps; i++ {
			tag := subscriber.AllInterests[rng.Intn(len(subscriber.AllInterests))]
			want.Toggle(tag)
			var err error
			last, err = svc.ToggleInterest(ctx, 9, tag)
			require.NoError(t, err)
		}
		assert.Equal(t, want, last.Selected)

		// Toggling every selected tag again restores the empty set.
		for tag := range want {
			var err error
			last, err = svc.ToggleInterest(ctx, 9, tag)
			require.NoError(t, err)
		}
		if len(want) > 0 {
			assert.Empty(t, last.Selected)
		}
	}
}

func TestChooseRegionWhileToggling(t *testing.T) {
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()
	p := subscriber.Profile{PlatformUserID: 21}

	for round := 0; round < 20; round++ {
		svc.BeginSelection(ctx, p.PlatformUserID)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				tag := subscriber.AllInterests[i%len(subscriber.AllInterests)]
				if _, err := svc.ToggleInterest(ctx, p.PlatformUserID, tag); errors.Is(err, ErrNoSession) {
					return
				}
			}
		}()
		scr, err := svc.ChooseRegion(ctx, p, subscriber.RegionAll)
		<-done
		require.NoError(t, err)
		rec, err := store.GetByPlatformID(ctx, p.PlatformUserID)
		require.NoError(t, err)
		assert.Equal(t, scr.Selected, rec.Interests)
		assert.Zero(t, svc.sessions.Len())
	}
}

type flakyStore struct {
	missing bool
	created int
	updated int
	rec     subscriber.Subscriber
}

func (f *flakyStore) CreateIfAbsent(_ context.Context, p subscriber.Profile) (*subscriber.Subscriber, error) {
	f.created++
	if f.missing {
		f.missing = false
		f.rec = subscriber.Subscriber{PlatformUserID: p.PlatformUserID, Region: subscriber.RegionAll, IsActive: true}
	}
	out := f.rec
	return &out, nil
}

func (f *flakyStore) Update(_ context.Context, _ int64, mutate func(*subscriber.Subscriber) error) (*subscriber.Subscriber, error) {
	f.updated++
	if f.missing {
		return nil, subscriber.ErrNotFound
	}
	if err := mutate(&f.rec); err != nil {
		return nil, err
	}
	out := f.rec
	return &out, nil
}

func TestCommitRecreatesVanishedRecord(t *testing.T) {
	store := &flakyStore{missing: true}
	svc := newService(t, store)

	scr, err := svc.Skip(context.Background(), subscriber.Profile{PlatformUserID: 11})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, scr.State)
	assert.Equal(t, 1, store.created)
	assert.Equal(t, 2, store.updated)
	assert.True(t, store.rec.OnboardingComplete)
}

type failingStore struct{ err error }

func (f failingStore) CreateIfAbsent(context.Context, subscriber.Profile) (*subscriber.Subscriber, error) {
	return nil, f.err
}

func (f failingStore) Update(context.Context, int64, func(*subscriber.Subscriber) error) (*subscriber.Subscriber, error) {
	return nil, f.err
}

func TestStoreErrorsPropagate(t *testing.T) {
	down := errors.New("connection refused")
	svc := newService(t, failingStore{err: down})
	ctx := context.Background()

	_, err := svc.Start(ctx, subscriber.Profile{PlatformUserID: 1})
	assert.ErrorIs(t, err, down)

	svc.BeginSelection(ctx, 1)
	_, err = svc.ChooseRegion(ctx, subscriber.Profile{PlatformUserID: 1}, subscriber.RegionAll)
	assert.ErrorIs(t, err, down)
	// The staged selection survives a failed commit.
	assert.Equal(t, 1, svc.sessions.Len())
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, "@every 1m", cfg.SweepSpec)

	bad := Config{SessionTTL: -1}
	assert.Error(t, bad.Normalize())
}
