package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/drip/pkg/logger"
)

// ScheduleRequest describes one campaign stage to enqueue for a recipient.
type ScheduleRequest struct {
	Stage          Stage  `json:"stage"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientPhone string `json:"recipient_phone,omitempty"`
	Payload        string `json:"payload"`
}

// ScheduleResult reports the outcome of ScheduleStage.
// Created is false when a pending task for the same recipient and stage already existed.
type ScheduleResult struct {
	Created      bool      `json:"created"`
	TaskID       uuid.UUID `json:"task_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for,omitzero"`
}

// Scheduler enqueues campaign stages with per-recipient, per-stage deduplication.
type Scheduler struct {
	store  Store
	delays DelayPolicy
	now    func() time.Time
	logger *slog.Logger
}

// NewScheduler creates a Scheduler. The production delay profile is used
// unless WithDelayPolicy says otherwise.
func NewScheduler(store Store, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	options := &schedulerOptions{
		delays: ProductionProfile(),
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		store:  store,
		delays: options.delays,
		now:    options.now,
		logger: options.logger.With(logger.Component("reminder.scheduler")),
	}, nil
}

// MustNewScheduler is like NewScheduler but panics on error.
func MustNewScheduler(store Store, opts ...SchedulerOption) *Scheduler {
	s, err := NewScheduler(store, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// DelayPolicy returns the policy injected at construction.
func (s *Scheduler) DelayPolicy() DelayPolicy {
	return s.delays
}

// ScheduleStage validates the request and inserts a pending task due after the
// stage delay. Scheduling is idempotent: an existing pending task for the same
// recipient and stage makes this a successful no-op.
func (s *Scheduler) ScheduleStage(ctx context.Context, req ScheduleRequest, opts ...ScheduleOption) (ScheduleResult, error) {
	options := &scheduleOptions{
		delays:  s.delays,
		attempt: 1,
	}
	for _, opt := range opts {
		opt(options)
	}

	req.RecipientEmail = NormalizeEmail(req.RecipientEmail)
	req.RecipientName = strings.TrimSpace(req.RecipientName)
	req.RecipientPhone = strings.TrimSpace(req.RecipientPhone)

	if err := validateScheduleRequest(req); err != nil {
		return ScheduleResult{}, err
	}

	now := s.now()
	base := now
	if options.baseTime != nil {
		base = *options.baseTime
	}
	scheduledFor := base.Add(options.delays.DelayFor(req.Stage))
	if options.scheduledAt != nil {
		scheduledFor = *options.scheduledAt
	}

	task := &Task{
		ID:             uuid.New(),
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		Payload:        req.Payload,
		Stage:          req.Stage,
		Attempt:        options.attempt,
		ScheduledFor:   scheduledFor,
		Status:         StatusPending,
		CreatedAt:      now,
	}

	created, err := s.store.InsertIfAbsent(ctx, task)
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("failed to schedule stage %q for %s: %w", req.Stage, req.RecipientEmail, err)
	}

	if !created {
		s.logger.DebugContext(ctx, "stage already pending, nothing scheduled",
			logger.Stage(string(req.Stage)),
			logger.Recipient(req.RecipientEmail))
		return ScheduleResult{Created: false}, nil
	}

	s.logger.InfoContext(ctx, "stage scheduled",
		logger.TaskID(task.ID),
		logger.Stage(string(req.Stage)),
		logger.Recipient(req.RecipientEmail),
		slog.Int("attempt", task.Attempt),
		slog.Time("scheduled_for", scheduledFor))

	return ScheduleResult{
		Created:      true,
		TaskID:       task.ID,
		ScheduledFor: scheduledFor,
	}, nil
}

func validateScheduleRequest(req ScheduleRequest) error {
	var ve ValidationErrors

	if req.Stage == "" {
		ve.add("stage", "field is required")
	} else if !req.Stage.Valid() {
		ve.add("stage", "unknown stage")
	}

	validateEmail(&ve, "recipient_email", req.RecipientEmail)

	if strings.TrimSpace(req.Payload) == "" {
		ve.add("payload", "field is required")
	}

	return ve.err()
}
