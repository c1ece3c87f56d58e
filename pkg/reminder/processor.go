package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/drip/pkg/logger"
)

// BatchResult summarises one RunBatch invocation.
type BatchResult struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Processed int       `json:"processed"` // tasks claimed by this run
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Cancelled int       `json:"cancelled"` // suppressed by the conversion check, not failures
	Skipped   int       `json:"skipped"`   // claimed by a concurrent run
	Errors    int       `json:"errors"`    // store errors isolated to a single task
	Scheduled int       `json:"scheduled"` // next chain stages created
	Retried   int       `json:"retried"`   // retry attempts created by the retry policy
	Recovered int       `json:"recovered"` // stale claims failed before the run
}

// Processor drives due tasks through claim, conversion check, dispatch and
// chain continuation. It never schedules itself: some external caller invokes
// RunBatch periodically.
type Processor struct {
	store     Store
	scheduler *Scheduler
	oracle    ConversionOracle
	senders   map[Channel]ChannelSender

	retry       RetryPolicy
	batchLimit  int
	sendTimeout time.Duration
	staleAfter  time.Duration
	logger      *slog.Logger
}

// NewProcessor creates a Processor. Every collaborator is passed in explicitly;
// an email sender is mandatory, SMS is optional.
func NewProcessor(store Store, scheduler *Scheduler, oracle ConversionOracle, senders map[Channel]ChannelSender, opts ...ProcessorOption) (*Processor, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if scheduler == nil {
		return nil, ErrSchedulerNil
	}
	if oracle == nil {
		return nil, ErrOracleNil
	}
	if senders[ChannelEmail] == nil {
		return nil, ErrNoEmailSender
	}

	options := &processorOptions{
		retry:       NoRetry{},
		batchLimit:  DefaultBatchLimit,
		sendTimeout: DefaultSendTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	registered := make(map[Channel]ChannelSender, len(senders))
	for ch, s := range senders {
		if s != nil {
			registered[ch] = s
		}
	}

	return &Processor{
		store:       store,
		scheduler:   scheduler,
		oracle:      oracle,
		senders:     registered,
		retry:       options.retry,
		batchLimit:  options.batchLimit,
		sendTimeout: options.sendTimeout,
		staleAfter:  options.staleAfter,
		logger:      options.logger.With(logger.Component("reminder.processor")),
	}, nil
}

// MustNewProcessor is like NewProcessor but panics on error.
func MustNewProcessor(store Store, scheduler *Scheduler, oracle ConversionOracle, senders map[Channel]ChannelSender, opts ...ProcessorOption) *Processor {
	p, err := NewProcessor(store, scheduler, oracle, senders, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// RunBatch processes the tasks due at now, up to the configured batch limit.
func (p *Processor) RunBatch(ctx context.Context, now time.Time) (BatchResult, error) {
	return p.RunBatchLimit(ctx, now, p.batchLimit)
}

// RunBatchLimit processes at most limit tasks due at now, oldest first.
// Failures of a single task are absorbed into the result; only a failure to
// read due tasks is returned as an error. Cancelling ctx stops the batch
// before the next task and returns the context error.
func (p *Processor) RunBatchLimit(ctx context.Context, now time.Time, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = p.batchLimit
	}

	result := BatchResult{BatchID: uuid.New()}
	ctx = WithBatchID(ctx, result.BatchID)
	start := time.Now()

	p.recoverStale(ctx, now, &result)

	tasks, err := p.store.DueTasks(ctx, now, limit)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch due tasks", logger.Error(err))
		return result, errors.Join(ErrFailedToFetchDueTasks, err)
	}

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			p.logger.WarnContext(ctx, "batch interrupted",
				slog.Int("remaining", len(tasks)-i),
				logger.Error(err))
			return result, err
		}
		// A claimed task always gets an outcome recorded, so cancellation of
		// ctx only stops the batch between tasks. Sends stay bounded by the
		// send timeout.
		p.processTask(context.WithoutCancel(ctx), task, now, &result)
	}

	p.logger.InfoContext(ctx, "batch finished",
		slog.Int("due", len(tasks)),
		slog.Int("processed", result.Processed),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("cancelled", result.Cancelled),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
		logger.Duration(time.Since(start)))

	return result, nil
}

func (p *Processor) recoverStale(ctx context.Context, now time.Time, result *BatchResult) {
	if p.staleAfter <= 0 {
		return
	}
	audit, ok := p.store.(AuditStore)
	if !ok {
		return
	}

	n, err := audit.FailStale(ctx, now.Add(-p.staleAfter), "claim expired before an outcome was recorded")
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to recover stale claims", logger.Error(err))
		return
	}
	if n > 0 {
		result.Recovered = n
		p.logger.WarnContext(ctx, "stale claims marked as failed", slog.Int("count", n))
	}
}

// processTask runs one task through the state machine:
//
//	pending --claim--> processing --(converted)--> cancelled
//	processing --(send ok)--> sent --> next stage scheduled
//	processing --(send fails)--> failed --> optional retry attempt
func (p *Processor) processTask(ctx context.Context, task Task, now time.Time, result *BatchResult) {
	log := p.logger.With(
		logger.TaskID(task.ID),
		logger.Stage(string(task.Stage)),
		logger.Recipient(task.RecipientEmail))

	claimed, err := p.store.Claim(ctx, task.ID, now)
	if err != nil {
		result.Errors++
		log.ErrorContext(ctx, "failed to claim task", logger.Error(err))
		return
	}
	if !claimed {
		result.Skipped++
		log.DebugContext(ctx, "task already claimed elsewhere, skipping")
		return
	}
	result.Processed++

	if task.Stage.ChainSensitive() {
		converted, err := p.oracle.HasConverted(ctx, task.RecipientEmail)
		if err != nil {
			p.fail(ctx, log, task, fmt.Errorf("conversion check failed: %w", err), now, result)
			return
		}
		if converted {
			if err := p.store.MarkCancelled(ctx, task.ID); err != nil {
				result.Errors++
				log.ErrorContext(ctx, "failed to cancel converted recipient task", logger.Error(err))
				return
			}
			result.Cancelled++
			log.InfoContext(ctx, "recipient converted, task cancelled")
			return
		}
	}

	if err := p.dispatch(ctx, log, task); err != nil {
		p.fail(ctx, log, task, err, now, result)
		return
	}

	result.Sent++
	if err := p.markSent(ctx, task.ID, now); err != nil {
		result.Errors++
		log.ErrorContext(ctx, "task delivered but not marked as sent", logger.Error(err))
	} else {
		log.InfoContext(ctx, "task sent", slog.Int("attempt", task.Attempt))
	}

	p.continueChain(ctx, log, task, now, result)
}

// markSent records a delivery, retrying transient store errors. A delivered task
// left in processing would later be failed by stale-claim recovery.
func (p *Processor) markSent(ctx context.Context, id uuid.UUID, now time.Time) error {
	var err error
	for range markSentAttempts {
		err = p.store.MarkSent(ctx, id, now)
		if err == nil || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrTaskNotFound) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// dispatch sends over email and, when the stage and recipient allow it, SMS.
// The email outcome decides the task outcome; SMS is best effort.
func (p *Processor) dispatch(ctx context.Context, log *slog.Logger, task Task) error {
	msg := messageFromTask(task)

	if err := p.send(ctx, p.senders[ChannelEmail], msg); err != nil {
		return fmt.Errorf("%s: %w", ChannelEmail, err)
	}

	if !task.Stage.SupportsSMS() || task.RecipientPhone == "" {
		return nil
	}
	sms, ok := p.senders[ChannelSMS]
	if !ok {
		return nil
	}
	if err := p.send(ctx, sms, msg); err != nil {
		log.WarnContext(ctx, "sms delivery failed, email was sent",
			logger.Channel(string(ChannelSMS)),
			logger.Error(err))
	}

	return nil
}

// send isolates one sender call: panics become errors and a sender that
// ignores its context cannot hold the batch past the send timeout.
func (p *Processor) send(ctx context.Context, sender ChannelSender, msg Message) error {
	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrSendPanic, r)
			}
		}()
		done <- sender.Send(ctx, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Join(ErrSendTimeout, ctx.Err())
	}
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, task Task, cause error, now time.Time, result *BatchResult) {
	if err := p.store.MarkFailed(ctx, task.ID, cause.Error()); err != nil {
		result.Errors++
		log.ErrorContext(ctx, "failed to mark task as failed",
			logger.Errors(cause, err))
		return
	}
	result.Failed++
	log.ErrorContext(ctx, "task failed",
		slog.Int("attempt", task.Attempt),
		logger.Error(cause))

	delay, ok := p.retry.NextAttempt(task, cause)
	if !ok {
		return
	}

	res, err := p.scheduler.ScheduleStage(ctx, requestFromTask(task, task.Stage),
		WithScheduledAt(now.Add(delay)),
		WithAttempt(task.Attempt+1))
	if err != nil {
		result.Errors++
		log.ErrorContext(ctx, "failed to schedule retry attempt", logger.Error(err))
		return
	}
	if res.Created {
		result.Retried++
	}
}

func (p *Processor) continueChain(ctx context.Context, log *slog.Logger, task Task, now time.Time, result *BatchResult) {
	next, ok := NextStage(task.Stage)
	if !ok {
		return
	}

	res, err := p.scheduler.ScheduleStage(ctx, requestFromTask(task, next), WithBaseTime(now))
	if err != nil {
		result.Errors++
		log.ErrorContext(ctx, "failed to schedule next stage",
			slog.String("next_stage", string(next)),
			logger.Error(err))
		return
	}
	if res.Created {
		result.Scheduled++
	}
}

func requestFromTask(task Task, stage Stage) ScheduleRequest {
	return ScheduleRequest{
		Stage:          stage,
		RecipientEmail: task.RecipientEmail,
		RecipientName:  task.RecipientName,
		RecipientPhone: task.RecipientPhone,
		Payload:        task.Payload,
	}
}
