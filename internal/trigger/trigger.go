// Package trigger runs the reminder processor on a cron schedule inside dripd.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/drip/pkg/logger"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

var (
	ErrRunnerNil       = errors.New("batch runner cannot be nil")
	ErrInvalidSchedule = errors.New("invalid trigger schedule")
)

// Runner is the part of reminder.Processor the trigger drives.
type Runner interface {
	RunBatch(ctx context.Context, now time.Time) (reminder.BatchResult, error)
}

// Trigger invokes Runner.RunBatch on every tick of a cron schedule.
// A tick that fires while the previous run is still going is skipped.
type Trigger struct {
	runner   Runner
	schedule string
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
	ctx      context.Context // set by Run before the first tick
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Trigger) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock sets the time passed to RunBatch.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) {
		if now != nil {
			t.now = now
		}
	}
}

// New parses schedule ("@every 1m", "*/5 * * * *", ...) and returns a stopped Trigger.
func New(runner Runner, schedule string, opts ...Option) (*Trigger, error) {
	if runner == nil {
		return nil, ErrRunnerNil
	}

	t := &Trigger{
		runner:   runner,
		schedule: schedule,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(logger.Component("trigger"))

	t.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{t.logger}),
		cron.SkipIfStillRunning(cronLogger{t.logger}),
	))
	if _, err := t.cron.AddFunc(schedule, t.tick); err != nil {
		return nil, errors.Join(ErrInvalidSchedule, fmt.Errorf("%q: %w", schedule, err))
	}

	return t, nil
}

// Run starts the schedule and blocks until ctx is done. Batches receive ctx,
// so an in-flight batch stops before its next task and Run waits only for
// the task being processed.
func (t *Trigger) Run(ctx context.Context) error {
	t.ctx = ctx
	t.logger.InfoContext(ctx, "trigger started", slog.String("schedule", t.schedule))
	t.cron.Start()

	<-ctx.Done()

	<-t.cron.Stop().Done()
	t.logger.InfoContext(ctx, "trigger stopped")
	return nil
}

func (t *Trigger) tick() {
	ctx := t.ctx
	if ctx.Err() != nil {
		return
	}
	res, err := t.runner.RunBatch(ctx, t.now())
	if errors.Is(err, context.Canceled) {
		t.logger.InfoContext(ctx, "scheduled batch interrupted by shutdown",
			slog.Int("processed", res.Processed))
		return
	}
	if err != nil {
		t.logger.ErrorContext(ctx, "scheduled batch failed", logger.Error(err))
		return
	}
	if res.Processed == 0 && res.Recovered == 0 {
		return
	}
	t.logger.InfoContext(ctx, "scheduled batch finished",
		logger.BatchID(res.BatchID),
		slog.Int("processed", res.Processed),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Int("cancelled", res.Cancelled))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, logger.Error(err))...)
}
