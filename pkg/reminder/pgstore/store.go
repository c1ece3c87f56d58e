// Package pgstore implements reminder.Store on PostgreSQL with pgx/v5.
//
// Deduplication relies on a partial unique index over (recipient_email, stage)
// restricted to pending rows, and every status change is a conditional UPDATE,
// so concurrent schedulers and processors never double-insert or double-claim.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/drip/pkg/pg"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements reminder.Store and reminder.AuditStore.
type Store struct {
	db DB
}

var (
	_ reminder.Store      = (*Store)(nil)
	_ reminder.AuditStore = (*Store)(nil)
)

// New creates a Store. The schema must already be migrated.
func New(db DB) (*Store, error) {
	if db == nil {
		return nil, reminder.ErrStoreNil
	}
	return &Store{db: db}, nil
}

const taskColumns = `id, recipient_email, recipient_name, recipient_phone, payload, stage,
	attempt, scheduled_for, status, created_at, claimed_at, sent_at, error_message`

const insertTaskQuery = `
INSERT INTO reminder_tasks (id, recipient_email, recipient_name, recipient_phone, payload, stage,
	attempt, scheduled_for, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
ON CONFLICT (recipient_email, stage) WHERE status = 'pending' DO NOTHING`

// InsertIfAbsent implements reminder.Store.
func (s *Store) InsertIfAbsent(ctx context.Context, task *reminder.Task) (bool, error) {
	if task == nil {
		return false, errors.New("task cannot be nil")
	}

	tag, err := s.db.Exec(ctx, insertTaskQuery,
		task.ID, task.RecipientEmail, task.RecipientName, task.RecipientPhone, task.Payload,
		string(task.Stage), task.Attempt, task.ScheduledFor, task.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert reminder task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const dueTasksQuery = `
SELECT ` + taskColumns + `
FROM reminder_tasks
WHERE status = 'pending' AND scheduled_for <= $1
ORDER BY scheduled_for, created_at, id
LIMIT $2`

// DueTasks implements reminder.Store.
func (s *Store) DueTasks(ctx context.Context, now time.Time, limit int) ([]reminder.Task, error) {
	if limit <= 0 {
		limit = reminder.DefaultBatchLimit
	}
	rows, err := s.db.Query(ctx, dueTasksQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminder tasks: %w", err)
	}
	return collectTasks(rows)
}

const claimQuery = `
UPDATE reminder_tasks SET status = 'processing', claimed_at = $2
WHERE id = $1 AND status = 'pending'`

// Claim implements reminder.Store.
func (s *Store) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, claimQuery, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder task %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.status(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkSent implements reminder.Store.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.finish(ctx, id, reminder.StatusSent,
		`UPDATE reminder_tasks SET status = 'sent', sent_at = $2 WHERE id = $1 AND status = 'processing'`,
		id, sentAt)
}

// MarkFailed implements reminder.Store.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.finish(ctx, id, reminder.StatusFailed,
		`UPDATE reminder_tasks SET status = 'failed', error_message = $2 WHERE id = $1 AND status = 'processing'`,
		id, errMsg)
}

// MarkCancelled implements reminder.Store.
func (s *Store) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	return s.finish(ctx, id, reminder.StatusCancelled,
		`UPDATE reminder_tasks SET status = 'cancelled' WHERE id = $1 AND status = 'processing'`,
		id)
}

// CancelAllPending implements reminder.Store. A single UPDATE is atomic on its own.
func (s *Store) CancelAllPending(ctx context.Context, recipientEmail string) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE reminder_tasks SET status = 'cancelled' WHERE recipient_email = $1 AND status = 'pending'`,
		recipientEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending reminder tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const listByRecipientQuery = `
SELECT ` + taskColumns + `
FROM reminder_tasks
WHERE recipient_email = $1
ORDER BY scheduled_for DESC, created_at DESC, id DESC`

// ListByRecipient implements reminder.AuditStore.
func (s *Store) ListByRecipient(ctx context.Context, recipientEmail string) ([]reminder.Task, error) {
	rows, err := s.db.Query(ctx, listByRecipientQuery, recipientEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder tasks: %w", err)
	}
	return collectTasks(rows)
}

// FailStale implements reminder.AuditStore.
func (s *Store) FailStale(ctx context.Context, claimedBefore time.Time, errMsg string) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE reminder_tasks SET status = 'failed', error_message = $2
		WHERE status = 'processing' AND claimed_at < $1`,
		claimedBefore, errMsg)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale reminder tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) finish(ctx context.Context, id uuid.UUID, next reminder.Status, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark reminder task %s as %s: %w", id, next, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := s.status(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: task %s is %s, cannot become %s", reminder.ErrInvalidTransition, id, current, next)
}

func (s *Store) status(ctx context.Context, id uuid.UUID) (reminder.Status, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM reminder_tasks WHERE id = $1`, id).Scan(&status)
	if pg.IsNotFoundError(err) {
		return "", fmt.Errorf("%w: %s", reminder.ErrTaskNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reminder task %s: %w", id, err)
	}
	return reminder.Status(status), nil
}

func collectTasks(rows pgx.Rows) ([]reminder.Task, error) {
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (reminder.Task, error) {
		var (
			t      reminder.Task
			stage  string
			status string
		)
		err := row.Scan(&t.ID, &t.RecipientEmail, &t.RecipientName, &t.RecipientPhone, &t.Payload,
			&stage, &t.Attempt, &t.ScheduledFor, &status, &t.CreatedAt,
			&t.ClaimedAt, &t.SentAt, &t.ErrorMessage)
		t.Stage = reminder.Stage(stage)
		t.Status = reminder.Status(status)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan reminder tasks: %w", err)
	}
	return tasks, nil
}
