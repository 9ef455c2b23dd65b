// Package sender runs outbound Telegram calls on a bounded worker pool so
// update handlers never block on the Bot API.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/earlybot/core/logger"
	"github.com/m3rciful/earlybot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

const (
	defaultQueueSize    = 256
	defaultWorkers      = 4
	defaultRetryBackoff = 2 * time.Second
	defaultMaxDuration  = 12 * time.Second
)

// Options controls the dispatcher. Zero values select defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, waits included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaultMaxDuration
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued calls with retries.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	closed bool
	jobs   chan job

	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.handle(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run. It never blocks; run must be safe to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) handle(j job) {
	// Detached from the update context so replies still go out while the
	// handler that queued them returns; MaxDuration bounds the job instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			if attempt > 1 {
				logger.Info(j.ctx, "tg.sender", "send.retry.success", d.attrs(j, attempt, start)...)
			} else {
				logger.Debug(j.ctx, "tg.sender", "send.success", d.attrs(j, attempt, start)...)
			}
			return
		}
		if attempt == attempts || !Retryable(err) {
			break
		}
		delay := RetryDelay(err, d.opts.RetryBackoff, attempt)
		logger.Debug(j.ctx, "tg.sender", "send.retry.backoff",
			append(d.attrs(j, attempt, start), slog.Duration("backoff", delay))...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = fmt.Errorf("%w (last: %v)", ctx.Err(), err)
			attempt = attempts
		case <-timer.C:
		}
	}

	d.failed.Add(1)
	logger.Error(j.ctx, "tg.sender", "send.fail",
		append(d.attrs(j, attempts, start),
			slog.String("err", redact(err)),
			slog.String("err_code", ErrorKind(err)),
		)...,
	)
}

func (d *Dispatcher) attrs(j job, attempt int, start time.Time) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", j.action),
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
	}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// Retryable reports whether err is worth another attempt: network
// failures, flood control and Bot API server errors.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return netutil.ShouldRetry(err)
}

// RetryDelay returns the wait before the next attempt. Flood control
// errors carry their own wait; everything else backs off linearly.
func RetryDelay(err error, backoff time.Duration, attempt int) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	return backoff * time.Duration(attempt)
}

// ErrorKind is a short, log-friendly label for err.
func ErrorKind(err error) string {
	var flood tele.FloodError
	var apiErr *tele.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("api_%d", apiErr.Code)
	case netutil.ShouldRetry(err):
		return "network"
	}
	return "unknown"
}

// redact keeps bot tokens embedded in request URLs out of the logs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
