package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	_, err := reminder.NewScheduler(nil)
	assert.ErrorIs(t, err, reminder.ErrStoreNil)

	s, err := reminder.NewScheduler(reminder.NewMemoryStorage())
	require.NoError(t, err)
	assert.Equal(t, reminder.ProfileProduction, s.DelayPolicy().Name)

	assert.Panics(t, func() { reminder.MustNewScheduler(nil) })
	assert.Panics(t, func() { reminder.MustNewCanceller(nil) })
	assert.NotPanics(t, func() { reminder.MustNewCanceller(reminder.NewMemoryStorage()) })
}

func TestScheduler_ScheduleStage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	newScheduler := func(t *testing.T) (*reminder.Scheduler, *reminder.MemoryStorage) {
		t.Helper()
		store := reminder.NewMemoryStorage()
		s, err := reminder.NewScheduler(store,
			reminder.WithDelayPolicy(reminder.VerificationProfile()),
			reminder.WithClock(fixedClock(now)),
		)
		require.NoError(t, err)
		return s, store
	}

	t.Run("creates pending task after stage delay", func(t *testing.T) {
		s, store := newScheduler(t)

		res, err := s.ScheduleStage(ctx, reminder.ScheduleRequest{
			Stage:          reminder.StageVideoReminder,
			RecipientEmail: "  Alice@Example.com ",
			RecipientName:  " Alice ",
			Payload:        "https://example.com/v",
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, now.Add(5*time.Minute), res.ScheduledFor)

		task, ok := store.Get(res.TaskID)
		require.True(t, ok)
		assert.Equal(t, "alice@example.com", task.RecipientEmail)
		assert.Equal(t, "Alice", task.RecipientName)
		assert.Equal(t, reminder.StatusPending, task.Status)
		assert.Equal(t, 1, task.Attempt)
		assert.Equal(t, now, task.CreatedAt)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		s, store := newScheduler(t)
		req := reminder.ScheduleRequest{
			Stage:          reminder.StageVideoReminder,
			RecipientEmail: "alice@example.com",
			Payload:        "https://example.com/v",
		}

		first, err := s.ScheduleStage(ctx, req)
		require.NoError(t, err)
		require.True(t, first.Created)

		req.RecipientEmail = "ALICE@example.com"
		second, err := s.ScheduleStage(ctx, req)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Len(t, store.All(), 1)
	})

	t.Run("per-call options", func(t *testing.T) {
		s, store := newScheduler(t)
		at := now.Add(3 * time.Hour)

		res, err := s.ScheduleStage(ctx, reminder.ScheduleRequest{
			Stage:          reminder.StageTestimonial1,
			RecipientEmail: "bob@example.com",
			Payload:        "p",
		}, reminder.WithScheduledAt(at), reminder.WithAttempt(3))
		require.NoError(t, err)
		assert.Equal(t, at, res.ScheduledFor)
		task, _ := store.Get(res.TaskID)
		assert.Equal(t, 3, task.Attempt)

		base := now.Add(-time.Minute)
		res, err = s.ScheduleStage(ctx, reminder.ScheduleRequest{
			Stage:          reminder.StageTestimonial2,
			RecipientEmail: "bob@example.com",
			Payload:        "p",
		}, reminder.WithBaseTime(base), reminder.WithCallDelayPolicy(reminder.ProductionProfile()))
		require.NoError(t, err)
		assert.Equal(t, base.Add(72*time.Hour), res.ScheduledFor)
	})

	t.Run("validation errors", func(t *testing.T) {
		s, store := newScheduler(t)

		tests := []struct {
			name  string
			req   reminder.ScheduleRequest
			field string
		}{
			{"missing stage", reminder.ScheduleRequest{RecipientEmail: "a@example.com", Payload: "p"}, "stage"},
			{"unknown stage", reminder.ScheduleRequest{Stage: "nope", RecipientEmail: "a@example.com", Payload: "p"}, "stage"},
			{"missing email", reminder.ScheduleRequest{Stage: reminder.StageCheckingIn, Payload: "p"}, "recipient_email"},
			{"malformed email", reminder.ScheduleRequest{Stage: reminder.StageCheckingIn, RecipientEmail: "not-an-email", Payload: "p"}, "recipient_email"},
			{"email without domain dot", reminder.ScheduleRequest{Stage: reminder.StageCheckingIn, RecipientEmail: "a@localhost", Payload: "p"}, "recipient_email"},
			{"missing payload", reminder.ScheduleRequest{Stage: reminder.StageCheckingIn, RecipientEmail: "a@example.com", Payload: "  "}, "payload"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.ScheduleStage(ctx, tt.req)
				require.ErrorIs(t, err, reminder.ErrValidation)
				ve := reminder.ExtractValidationErrors(err)
				require.NotEmpty(t, ve)
				assert.Equal(t, tt.field, ve[0].Field)
			})
		}

		assert.Empty(t, store.All())
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		boom := errors.New("db down")
		s, err := reminder.NewScheduler(&failingStore{Store: reminder.NewMemoryStorage(), insertErr: boom})
		require.NoError(t, err)

		_, err = s.ScheduleStage(ctx, reminder.ScheduleRequest{
			Stage:          reminder.StageCheckingIn,
			RecipientEmail: "a@example.com",
			Payload:        "p",
		})
		assert.ErrorIs(t, err, boom)
	})
}

func TestCanceller_CancelAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := reminder.NewCanceller(nil)
	assert.ErrorIs(t, err, reminder.ErrStoreNil)

	store := reminder.NewMemoryStorage()
	s, err := reminder.NewScheduler(store)
	require.NoError(t, err)
	c, err := reminder.NewCanceller(store)
	require.NoError(t, err)

	for _, st := range []reminder.Stage{reminder.StageCheckingIn, reminder.StageTestimonial2} {
		_, err := s.ScheduleStage(ctx, reminder.ScheduleRequest{Stage: st, RecipientEmail: "alice@example.com", Payload: "p"})
		require.NoError(t, err)
	}
	_, err = s.ScheduleStage(ctx, reminder.ScheduleRequest{Stage: reminder.StageCheckingIn, RecipientEmail: "bob@example.com", Payload: "p"})
	require.NoError(t, err)

	n, err := c.CancelAll(ctx, " ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.CancelAll(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.CancelAll(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.CancelAll(ctx, "   ")
	assert.ErrorIs(t, err, reminder.ErrValidation)

	bob, err := store.ListByRecipient(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, reminder.StatusPending, bob[0].Status)
}

// failingStore injects errors into selected Store methods.
type failingStore struct {
	reminder.Store
	insertErr   error
	dueErr      error
	claimErr    error
	markSentErr error
	// markSentFailures makes the next n MarkSent calls fail with errTransient.
	markSentFailures int
	markSentCalls    int
}

func (f *failingStore) InsertIfAbsent(ctx context.Context, task *reminder.Task) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	return f.Store.InsertIfAbsent(ctx, task)
}

func (f *failingStore) DueTasks(ctx context.Context, now time.Time, limit int) ([]reminder.Task, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return f.Store.DueTasks(ctx, now, limit)
}

func (f *failingStore) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.Store.Claim(ctx, id, now)
}

func (f *failingStore) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	f.markSentCalls++
	if f.markSentErr != nil {
		return f.markSentErr
	}
	if f.markSentFailures > 0 {
		f.markSentFailures--
		return errTransient
	}
	return f.Store.MarkSent(ctx, id, sentAt)
}

func (f *failingStore) FailStale(ctx context.Context, claimedBefore time.Time, errMsg string) (int, error) {
	audit, ok := f.Store.(reminder.AuditStore)
	if !ok {
		return 0, nil
	}
	return audit.FailStale(ctx, claimedBefore, errMsg)
}

var errTransient = errors.New("connection reset")
