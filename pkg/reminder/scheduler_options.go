package reminder

import (
	"log/slog"
	"time"
)

// SchedulerOption configures a Scheduler
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	delays DelayPolicy
	now    func() time.Time
	logger *slog.Logger
}

// WithDelayPolicy sets the delay policy used for every ScheduleStage call
func WithDelayPolicy(p DelayPolicy) SchedulerOption {
	return func(o *schedulerOptions) {
		o.delays = p
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSchedulerLogger sets a custom logger for the scheduler
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ScheduleOption is a functional option for a single ScheduleStage call
type ScheduleOption func(*scheduleOptions)

type scheduleOptions struct {
	delays      DelayPolicy
	scheduledAt *time.Time
	baseTime    *time.Time
	attempt     int
}

// WithCallDelayPolicy overrides the scheduler's delay policy for one call
func WithCallDelayPolicy(p DelayPolicy) ScheduleOption {
	return func(o *scheduleOptions) {
		o.delays = p
	}
}

// WithScheduledAt sets an explicit due time instead of a policy delay
func WithScheduledAt(at time.Time) ScheduleOption {
	return func(o *scheduleOptions) {
		o.scheduledAt = &at
	}
}

// WithBaseTime computes the due time from base instead of the scheduler clock
func WithBaseTime(base time.Time) ScheduleOption {
	return func(o *scheduleOptions) {
		o.baseTime = &base
	}
}

// WithAttempt records the attempt number of the new task (1 for a first try)
func WithAttempt(attempt int) ScheduleOption {
	return func(o *scheduleOptions) {
		if attempt > 0 {
			o.attempt = attempt
		}
	}
}
