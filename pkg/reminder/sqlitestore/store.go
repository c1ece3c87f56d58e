// Package sqlitestore implements reminder.Store on SQLite through the pure-Go
// modernc.org/sqlite driver. Timestamps are stored as unix nanoseconds.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dmitrymomot/drip/pkg/pg"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements reminder.Store and reminder.AuditStore.
type Store struct {
	db *sql.DB
}

var (
	_ reminder.Store      = (*Store)(nil)
	_ reminder.AuditStore = (*Store)(nil)
)

// Open opens the database at dsn, applies migrations and returns the store.
// SQLite allows a single writer, so the pool is capped at one connection.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	if err := pg.RunGoose(ctx, db, "sqlite3", migrations, "migrations", "drip_schema_migrations", log); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// New wraps an already migrated database.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, reminder.ErrStoreNil
	}
	return &Store{db: db}, nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const taskColumns = `id, recipient_email, recipient_name, recipient_phone, payload, stage,
	attempt, scheduled_for, status, created_at, claimed_at, sent_at, error_message`

// InsertIfAbsent implements reminder.Store.
func (s *Store) InsertIfAbsent(ctx context.Context, task *reminder.Task) (bool, error) {
	if task == nil {
		return false, errors.New("task cannot be nil")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_tasks (id, recipient_email, recipient_name, recipient_phone, payload, stage,
			attempt, scheduled_for, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT (recipient_email, stage) WHERE status = 'pending' DO NOTHING`,
		task.ID.String(), task.RecipientEmail, task.RecipientName, task.RecipientPhone, task.Payload,
		string(task.Stage), task.Attempt, task.ScheduledFor.UnixNano(), task.CreatedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to insert reminder task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DueTasks implements reminder.Store.
func (s *Store) DueTasks(ctx context.Context, now time.Time, limit int) ([]reminder.Task, error) {
	if limit <= 0 {
		limit = reminder.DefaultBatchLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM reminder_tasks
		WHERE status = 'pending' AND scheduled_for <= ?
		ORDER BY scheduled_for, created_at, id
		LIMIT ?`, now.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminder tasks: %w", err)
	}
	return scanTasks(rows)
}

// Claim implements reminder.Store.
func (s *Store) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminder_tasks SET status = 'processing', claimed_at = ? WHERE id = ? AND status = 'pending'`,
		now.UnixNano(), id.String())
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
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
		`UPDATE reminder_tasks SET status = 'sent', sent_at = ? WHERE id = ? AND status = 'processing'`,
		sentAt.UnixNano(), id.String())
}

// MarkFailed implements reminder.Store.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.finish(ctx, id, reminder.StatusFailed,
		`UPDATE reminder_tasks SET status = 'failed', error_message = ? WHERE id = ? AND status = 'processing'`,
		errMsg, id.String())
}

// MarkCancelled implements reminder.Store.
func (s *Store) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	return s.finish(ctx, id, reminder.StatusCancelled,
		`UPDATE reminder_tasks SET status = 'cancelled' WHERE id = ? AND status = 'processing'`,
		id.String())
}

// CancelAllPending implements reminder.Store.
func (s *Store) CancelAllPending(ctx context.Context, recipientEmail string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminder_tasks SET status = 'cancelled' WHERE recipient_email = ? AND status = 'pending'`,
		recipientEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending reminder tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListByRecipient implements reminder.AuditStore.
func (s *Store) ListByRecipient(ctx context.Context, recipientEmail string) ([]reminder.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM reminder_tasks
		WHERE recipient_email = ?
		ORDER BY scheduled_for DESC, created_at DESC, id DESC`, recipientEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder tasks: %w", err)
	}
	return scanTasks(rows)
}

// FailStale implements reminder.AuditStore.
func (s *Store) FailStale(ctx context.Context, claimedBefore time.Time, errMsg string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminder_tasks SET status = 'failed', error_message = ? WHERE status = 'processing' AND claimed_at < ?`,
		errMsg, claimedBefore.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale reminder tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) finish(ctx context.Context, id uuid.UUID, next reminder.Status, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark reminder task %s as %s: %w", id, next, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
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
	err := s.db.QueryRowContext(ctx, `SELECT status FROM reminder_tasks WHERE id = ?`, id.String()).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", reminder.ErrTaskNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reminder task %s: %w", id, err)
	}
	return reminder.Status(status), nil
}

func scanTasks(rows *sql.Rows) ([]reminder.Task, error) {
	defer rows.Close()

	var tasks []reminder.Task
	for rows.Next() {
		var (
			t                     reminder.Task
			id, stage, status     string
			scheduledFor, created int64
			claimedAt, sentAt     sql.NullInt64
			errMsg                sql.NullString
		)
		if err := rows.Scan(&id, &t.RecipientEmail, &t.RecipientName, &t.RecipientPhone, &t.Payload,
			&stage, &t.Attempt, &scheduledFor, &status, &created, &claimedAt, &sentAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan reminder task: %w", err)
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reminder task id %q: %w", id, err)
		}
		t.ID = parsed
		t.Stage = reminder.Stage(stage)
		t.Status = reminder.Status(status)
		t.ScheduledFor = fromNanos(scheduledFor)
		t.CreatedAt = fromNanos(created)
		if claimedAt.Valid {
			ts := fromNanos(claimedAt.Int64)
			t.ClaimedAt = &ts
		}
		if sentAt.Valid {
			ts := fromNanos(sentAt.Int64)
			t.SentAt = &ts
		}
		if errMsg.Valid {
			t.ErrorMessage = &errMsg.String
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder tasks: %w", err)
	}
	return tasks, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
