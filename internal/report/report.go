// Package report builds the read-only operator statistics.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/internal/subscriber"
)

const (
	component = "service.report"

	// RecentLimit caps the recent subscribers list.
	RecentLimit = 10
	// HistoryDays is the length of the daily signup histogram.
	HistoryDays = 7
)

// Store is the read side of the subscriber store.
type Store interface {
	Totals(ctx context.Context) (subscriber.Totals, error)
	Count(ctx context.Context, f subscriber.Filter) (int, error)
	RegionCounts(ctx context.Context) (map[subscriber.Region]int, error)
	InterestCounts(ctx context.Context) (map[subscriber.Interest]int, error)
	Recent(ctx context.Context, limit int) ([]subscriber.Subscriber, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

// Authorizer gates who may read the report.
type Authorizer interface {
	Authorize(id int64) error
}

// DailyCount is the number of signups on one UTC day.
type DailyCount struct {
	Day   time.Time
	Count int
}

// Report is a snapshot of subscriber aggregates. Total, Active and Inactive
// come from one statement; the other figures each run their own query.
type Report struct {
	Total      int
	Active     int
	Inactive   int
	Complete   int
	ByRegion   map[subscriber.Region]int
	ByInterest map[subscriber.Interest]int
	Recent     []subscriber.Subscriber
	Daily      []DailyCount
}

// Service computes reports on demand. Nothing is cached.
type Service struct {
	store Store
	auth  Authorizer
	now   func() time.Time
}

// NewService wires the report builder.
func NewService(store Store, auth Authorizer) *Service {
	return &Service{store: store, auth: auth, now: time.Now}
}

// Build authorizes caller and then runs the aggregate queries in parallel.
func (s *Service) Build(ctx context.Context, caller int64) (*Report, error) {
	if err := s.auth.Authorize(caller); err != nil {
		return nil, err
	}
	started := time.Now()
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(HistoryDays - 1))

	var (
		r       Report
		signups []time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.Totals(gctx)
		r.Total, r.Active, r.Inactive = t.Total, t.Active, t.Inactive()
		return wrap("totals", err)
	})
	g.Go(func() (err error) {
		r.Complete, err = s.store.Count(gctx, subscriber.Filter{OnboardingComplete: subscriber.Bool(true)})
		return wrap("complete", err)
	})
	g.Go(func() (err error) {
		r.ByRegion, err = s.store.RegionCounts(gctx)
		return wrap("by region", err)
	})
	g.Go(func() (err error) {
		r.ByInterest, err = s.store.InterestCounts(gctx)
		return wrap("by interest", err)
	})
	g.Go(func() (err error) {
		r.Recent, err = s.store.Recent(gctx, RecentLimit)
		return wrap("recent", err)
	})
	g.Go(func() (err error) {
		signups, err = s.store.CreatedSince(gctx, since)
		return wrap("daily", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.Daily = histogram(since, HistoryDays, signups)

	logger.Debug(ctx, component, "report.built",
		slog.Int64("user_id", caller),
		slog.Int("total", r.Total),
		slog.Duration("duration", logger.RoundMS(time.Since(started))),
	)
	return &r, nil
}

func wrap(part string, err error) error {
	if err != nil {
		return fmt.Errorf("report %s: %w", part, err)
	}
	return nil
}

// histogram buckets times into days UTC days starting at from, newest last.
func histogram(from time.Time, days int, times []time.Time) []DailyCount {
	out := make([]DailyCount, days)
	for i := range out {
		out[i].Day = from.AddDate(0, 0, i)
	}
	for _, t := range times {
		if t.Before(from) {
			continue
		}
		idx := int(t.UTC().Sub(from) / (24 * time.Hour))
		if idx >= 0 && idx < days {
			out[idx].Count++
		}
	}
	return out
}
