// Package reminder schedules and delivers multi-stage drip campaigns: chains of
// dependent notifications sent hours or days apart, halted as soon as the
// recipient converts.
//
// The package is organised around four components that share one Store:
//
//   - Scheduler: enqueues a campaign stage for a recipient, at most one pending
//     task per recipient and stage, due after the DelayPolicy delay
//   - Canceller: cancels every pending task of a recipient on conversion
//   - Processor: claims due tasks, checks conversion, dispatches to the channel
//     senders, records the outcome and schedules the next stage of the chain
//   - Store    : persistence only; MemoryStorage here, PostgreSQL and SQLite
//     implementations in the pgstore and sqlitestore sub-packages
//
// # Task lifecycle
//
//	pending --claim--> processing --(converted)--> cancelled
//	processing --(send ok)--> sent        (next stage scheduled)
//	processing --(send fails)--> failed   (retry only via RetryPolicy)
//	pending --CancelAll--> cancelled
//
// Rows are never deleted and never leave a terminal status.
//
// # Usage
//
//	store := reminder.NewMemoryStorage()
//	scheduler, _ := reminder.NewScheduler(store,
//	    reminder.WithDelayPolicy(reminder.VerificationProfile()),
//	)
//	processor, _ := reminder.NewProcessor(store, scheduler, oracle,
//	    map[reminder.Channel]reminder.ChannelSender{
//	        reminder.ChannelEmail: emailSender,
//	    },
//	)
//
//	_, _ = scheduler.ScheduleStage(ctx, reminder.ScheduleRequest{
//	    Stage:          reminder.StageVideoReminder,
//	    RecipientEmail: "alice@example.com",
//	    Payload:        "https://example.com/v",
//	})
//
//	// Invoked by a cron entry, an HTTP trigger or a test.
//	result, err := processor.RunBatch(ctx, time.Now())
//
// The Processor never schedules itself. Overlapping RunBatch calls are safe
// because a task is only handled by the run whose Claim succeeded. A
// cancellation that lands between Claim and dispatch can still let one message
// through; the conversion check right before dispatch narrows that window but
// does not close it.
//
// # Error Handling
//
// Sentinel errors (ErrValidation, ErrTaskNotFound, ErrInvalidTransition, ...)
// can be checked with errors.Is. Send failures and per-task store failures are
// absorbed into BatchResult; RunBatch only returns an error when due tasks
// cannot be read at all.
package reminder
