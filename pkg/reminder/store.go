package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists reminder tasks. It holds no business logic; every status change
// is a conditional update so concurrent callers cannot move a row twice.
type Store interface {
	// InsertIfAbsent creates a pending task unless a pending task already exists
	// for the same recipient and stage. It reports whether a row was created.
	InsertIfAbsent(ctx context.Context, task *Task) (bool, error)

	// DueTasks returns pending tasks scheduled at or before now, oldest first,
	// capped at limit.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]Task, error)

	// Claim moves a task from pending to processing. It returns false when the
	// task is no longer pending.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// MarkSent moves a processing task to sent.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	// MarkFailed moves a processing task to failed and records the error.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// MarkCancelled moves a processing task to cancelled.
	MarkCancelled(ctx context.Context, id uuid.UUID) error

	// CancelAllPending cancels every pending task of the recipient in one
	// transaction and returns how many rows changed.
	CancelAllPending(ctx context.Context, recipientEmail string) (int, error)
}

// AuditStore exposes history reads and stuck-claim recovery.
// Stores implement it optionally.
type AuditStore interface {
	// ListByRecipient returns every task of the recipient, newest first.
	ListByRecipient(ctx context.Context, recipientEmail string) ([]Task, error)

	// FailStale marks tasks claimed before claimedBefore and still processing
	// as failed. They never go back to pending.
	FailStale(ctx context.Context, claimedBefore time.Time, errMsg string) (int, error)
}
