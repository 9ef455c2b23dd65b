// Package broadcast relays one operator message to every active subscriber.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/internal/delivery"
	"github.com/m3rciful/earlybot/internal/subscriber"
)

const component = "service.broadcast"

// DefaultWorkers bounds concurrent deliveries when not configured.
const DefaultWorkers = 4

// Config tunes the fan-out.
type Config struct {
	Workers int `yaml:"workers" envconfig:"BROADCAST_WORKERS"`
}

// Normalize fills defaults.
func (c *Config) Normalize() error {
	if c.Workers < 0 {
		return fmt.Errorf("broadcast.workers must be >= 0")
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	return nil
}

// Store is the subset of the subscriber store used by a run.
type Store interface {
	ActiveIDs(ctx context.Context) ([]int64, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// Authorizer gates who may start a run.
type Authorizer interface {
	Authorize(id int64) error
}

// Transport delivers the source message to one recipient. Permanent
// failures must be reported as *delivery.Error with KindPermanent.
type Transport interface {
	Relay(ctx context.Context, src delivery.MessageRef, recipient int64) error
}

// Request describes one run.
type Request struct {
	Caller int64
	Source delivery.MessageRef
	// OnStart, when set, is called with the snapshot size before any delivery.
	OnStart func(total int)
}

// Result tallies a run. Delivered + Failed == Total.
type Result struct {
	// ID correlates the log lines of one run.
	ID          string
	Total       int
	Delivered   int
	Failed      int
	Deactivated int
}

// Engine runs broadcasts.
type Engine struct {
	store   Store
	auth    Authorizer
	workers int
}

// NewEngine wires the engine. cfg should be normalized.
func NewEngine(store Store, auth Authorizer, cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{store: store, auth: auth, workers: workers}
}

// Broadcast snapshots active subscribers and relays req.Source to each of
// them with bounded concurrency. Per-recipient failures never abort the
// run; a permanent failure deactivates that subscriber. Only authorization
// and snapshot errors are returned.
func (e *Engine) Broadcast(ctx context.Context, tr Transport, req Request) (Result, error) {
	if err := e.auth.Authorize(req.Caller); err != nil {
		return Result{}, err
	}
	started := time.Now()
	runID := uuid.NewString()
	run := slog.String("broadcast_id", runID)

	ids, err := e.store.ActiveIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("broadcast snapshot: %w", err)
	}
	if req.OnStart != nil {
		req.OnStart(len(ids))
	}
	logger.Info(ctx, component, "broadcast.start", run,
		slog.Int64("user_id", req.Caller),
		slog.Int("recipients", len(ids)),
		slog.Int("workers", e.workers),
	)

	var delivered, failed, deactivated atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := tr.Relay(ctx, req.Source, id)
			if err == nil {
				delivered.Add(1)
				return nil
			}
			failed.Add(1)
			if !delivery.IsPermanent(err) {
				logger.Debug(ctx, component, "broadcast.transient", run,
					slog.Int64("platform_user_id", id),
					slog.String("err", err.Error()),
				)
				return nil
			}
			if e.deactivate(ctx, run, id, err) {
				deactivated.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		ID:          runID,
		Total:       len(ids),
		Delivered:   int(delivered.Load()),
		Failed:      int(failed.Load()),
		Deactivated: int(deactivated.Load()),
	}
	logger.Info(ctx, component, "broadcast.done", run,
		slog.String("status", "ok"),
		slog.Int("recipients", res.Total),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("deactivated", res.Deactivated),
		slog.Duration("duration", logger.RoundMS(time.Since(started))),
	)
	return res, nil
}

// deactivate records a permanent failure. A lost write is logged and left
// for the next run to rediscover.
func (e *Engine) deactivate(ctx context.Context, run slog.Attr, id int64, cause error) bool {
	changed, err := e.store.Deactivate(ctx, id)
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		return false
	case err != nil:
		logger.Warn(ctx, component, "broadcast.deactivate_failed", run,
			slog.Int64("platform_user_id", id),
			slog.String("err", err.Error()),
		)
		return false
	}
	if changed {
		logger.Info(ctx, component, "subscriber.deactivated", run,
			slog.Int64("platform_user_id", id),
			slog.String("reason", cause.Error()),
		)
	}
	return changed
}
