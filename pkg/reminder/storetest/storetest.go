// Package storetest runs the behaviour every reminder.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

// Store is the surface exercised by Run.
type Store interface {
	reminder.Store
	reminder.AuditStore
}

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) Store

// NewTask builds a pending task due at scheduledFor.
func NewTask(email string, stage reminder.Stage, scheduledFor time.Time) *reminder.Task {
	return &reminder.Task{
		ID:             uuid.New(),
		RecipientEmail: email,
		RecipientName:  "Alice",
		Payload:        "https://example.com/v",
		Stage:          stage,
		Attempt:        1,
		ScheduledFor:   scheduledFor,
		Status:         reminder.StatusPending,
		CreatedAt:      scheduledFor.Add(-time.Minute),
	}
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("insert deduplicates pending recipient and stage", func(t *testing.T) {
		s := newStore(t)

		created, err := s.InsertIfAbsent(ctx, NewTask("alice@example.com", reminder.StageVideoReminder, base))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.InsertIfAbsent(ctx, NewTask("alice@example.com", reminder.StageVideoReminder, base.Add(time.Hour)))
		require.NoError(t, err)
		assert.False(t, created)

		created, err = s.InsertIfAbsent(ctx, NewTask("alice@example.com", reminder.StageCheckingIn, base))
		require.NoError(t, err)
		assert.True(t, created, "other stage of the same recipient")

		created, err = s.InsertIfAbsent(ctx, NewTask("bob@example.com", reminder.StageVideoReminder, base))
		require.NoError(t, err)
		assert.True(t, created, "same stage of another recipient")

		tasks, err := s.ListByRecipient(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("insert allowed again once previous task left pending", func(t *testing.T) {
		s := newStore(t)
		first := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		_, err := s.InsertIfAbsent(ctx, first)
		require.NoError(t, err)

		claimed, err := s.Claim(ctx, first.ID, base)
		require.NoError(t, err)
		require.True(t, claimed)

		created, err := s.InsertIfAbsent(ctx, NewTask("alice@example.com", reminder.StageVideoReminder, base.Add(time.Hour)))
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("concurrent inserts create one pending task", func(t *testing.T) {
		s := newStore(t)

		var wg sync.WaitGroup
		var created atomic.Int32
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.InsertIfAbsent(ctx, NewTask("alice@example.com", reminder.StageTestimonial1, base))
				assert.NoError(t, err)
				if ok {
					created.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), created.Load())
	})

	t.Run("due tasks respect time order and limit", func(t *testing.T) {
		s := newStore(t)
		late := NewTask("a@example.com", reminder.StageVideoReminder, base.Add(2*time.Minute))
		early := NewTask("b@example.com", reminder.StageVideoReminder, base)
		future := NewTask("c@example.com", reminder.StageVideoReminder, base.Add(time.Hour))
		for _, task := range []*reminder.Task{late, early, future} {
			_, err := s.InsertIfAbsent(ctx, task)
			require.NoError(t, err)
		}

		due, err := s.DueTasks(ctx, base.Add(5*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, early.ID, due[0].ID)
		assert.Equal(t, late.ID, due[1].ID)
		assert.Equal(t, reminder.StatusPending, due[0].Status)
		assert.True(t, due[0].ScheduledFor.Equal(base))

		due, err = s.DueTasks(ctx, base.Add(5*time.Minute), 1)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, early.ID, due[0].ID)

		due, err = s.DueTasks(ctx, base, 10)
		require.NoError(t, err)
		require.Len(t, due, 1, "scheduled_for equal to now is due")
	})

	t.Run("non-positive limit means default batch limit", func(t *testing.T) {
		s := newStore(t)
		for i := range reminder.DefaultBatchLimit + 5 {
			task := NewTask(fmt.Sprintf("user%d@example.com", i), reminder.StageTestimonial1, base.Add(time.Duration(i)*time.Second))
			_, err := s.InsertIfAbsent(ctx, task)
			require.NoError(t, err)
		}

		for _, limit := range []int{0, -1} {
			due, err := s.DueTasks(ctx, base.Add(time.Hour), limit)
			require.NoError(t, err)
			assert.Len(t, due, reminder.DefaultBatchLimit, "limit %d", limit)
		}
	})

	t.Run("claim succeeds once", func(t *testing.T) {
		s := newStore(t)
		task := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		_, err := s.InsertIfAbsent(ctx, task)
		require.NoError(t, err)

		claimed, err := s.Claim(ctx, task.ID, base)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = s.Claim(ctx, task.ID, base)
		require.NoError(t, err)
		assert.False(t, claimed)

		due, err := s.DueTasks(ctx, base, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		s := newStore(t)
		task := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		_, err := s.InsertIfAbsent(ctx, task)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var winners atomic.Int32
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.Claim(ctx, task.ID, base)
				assert.NoError(t, err)
				if ok {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners.Load())
	})

	t.Run("claim of unknown task", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Claim(ctx, uuid.New(), base)
		assert.ErrorIs(t, err, reminder.ErrTaskNotFound)
	})

	t.Run("outcomes require processing", func(t *testing.T) {
		s := newStore(t)
		task := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		_, err := s.InsertIfAbsent(ctx, task)
		require.NoError(t, err)

		assert.ErrorIs(t, s.MarkSent(ctx, task.ID, base), reminder.ErrInvalidTransition)
		assert.ErrorIs(t, s.MarkFailed(ctx, task.ID, "boom"), reminder.ErrInvalidTransition)
		assert.ErrorIs(t, s.MarkCancelled(ctx, task.ID), reminder.ErrInvalidTransition)
		assert.ErrorIs(t, s.MarkSent(ctx, uuid.New(), base), reminder.ErrTaskNotFound)
	})

	t.Run("mark sent records timestamps", func(t *testing.T) {
		s := newStore(t)
		task := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		_, err := s.InsertIfAbsent(ctx, task)
		require.NoError(t, err)

		claimedAt := base.Add(time.Second)
		_, err = s.Claim(ctx, task.ID, claimedAt)
		require.NoError(t, err)
		require.NoError(t, s.MarkSent(ctx, task.ID, claimedAt))

		got := single(t, s, "alice@example.com")
		assert.Equal(t, reminder.StatusSent, got.Status)
		require.NotNil(t, got.SentAt)
		assert.True(t, got.SentAt.Equal(claimedAt))
		require.NotNil(t, got.ClaimedAt)
		assert.True(t, got.ClaimedAt.Equal(claimedAt))
		assert.Nil(t, got.ErrorMessage)

		assert.ErrorIs(t, s.MarkFailed(ctx, task.ID, "late"), reminder.ErrInvalidTransition, "sent is terminal")
	})

	t.Run("mark failed records error", func(t *testing.T) {
		s := newStore(t)
		task := NewTask("alice@example.com", reminder.StageFinalReminder, base)
		_, err := s.InsertIfAbsent(ctx, task)
		require.NoError(t, err)
		_, err = s.Claim(ctx, task.ID, base)
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(ctx, task.ID, "smtp down"))

		got := single(t, s, "alice@example.com")
		assert.Equal(t, reminder.StatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "smtp down", *got.ErrorMessage)
		assert.Nil(t, got.SentAt)
	})

	t.Run("mark cancelled after claim", func(t *testing.T) {
		s := newStore(t)
		task := NewTask("alice@example.com", reminder.StageCheckingIn, base)
		_, err := s.InsertIfAbsent(ctx, task)
		require.NoError(t, err)
		_, err = s.Claim(ctx, task.ID, base)
		require.NoError(t, err)
		require.NoError(t, s.MarkCancelled(ctx, task.ID))

		assert.Equal(t, reminder.StatusCancelled, single(t, s, "alice@example.com").Status)
	})

	t.Run("cancel all pending only touches pending rows of recipient", func(t *testing.T) {
		s := newStore(t)
		sent := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		_, err := s.InsertIfAbsent(ctx, sent)
		require.NoError(t, err)
		_, err = s.Claim(ctx, sent.ID, base)
		require.NoError(t, err)
		require.NoError(t, s.MarkSent(ctx, sent.ID, base))

		for _, task := range []*reminder.Task{
			NewTask("alice@example.com", reminder.StageCheckingIn, base.Add(time.Hour)),
			NewTask("alice@example.com", reminder.StageTestimonial1, base.Add(time.Hour)),
			NewTask("bob@example.com", reminder.StageCheckingIn, base.Add(time.Hour)),
		} {
			_, err := s.InsertIfAbsent(ctx, task)
			require.NoError(t, err)
		}

		n, err := s.CancelAllPending(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.CancelAllPending(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Zero(t, n)

		tasks, err := s.ListByRecipient(ctx, "alice@example.com")
		require.NoError(t, err)
		counts := map[reminder.Status]int{}
		for _, task := range tasks {
			counts[task.Status]++
		}
		assert.Equal(t, map[reminder.Status]int{reminder.StatusSent: 1, reminder.StatusCancelled: 2}, counts)

		bob, err := s.ListByRecipient(ctx, "bob@example.com")
		require.NoError(t, err)
		require.Len(t, bob, 1)
		assert.Equal(t, reminder.StatusPending, bob[0].Status)
	})

	t.Run("list by recipient newest first", func(t *testing.T) {
		s := newStore(t)
		older := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		newer := NewTask("alice@example.com", reminder.StageCheckingIn, base.Add(time.Hour))
		for _, task := range []*reminder.Task{older, newer} {
			_, err := s.InsertIfAbsent(ctx, task)
			require.NoError(t, err)
		}

		tasks, err := s.ListByRecipient(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, newer.ID, tasks[0].ID)
		assert.Equal(t, older.ID, tasks[1].ID)
		assert.Equal(t, "Alice", tasks[1].RecipientName)
		assert.Equal(t, "https://example.com/v", tasks[1].Payload)
		assert.Equal(t, 1, tasks[1].Attempt)

		none, err := s.ListByRecipient(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("fail stale claims", func(t *testing.T) {
		s := newStore(t)
		stale := NewTask("alice@example.com", reminder.StageVideoReminder, base)
		fresh := NewTask("bob@example.com", reminder.StageVideoReminder, base)
		for _, task := range []*reminder.Task{stale, fresh} {
			_, err := s.InsertIfAbsent(ctx, task)
			require.NoError(t, err)
		}
		_, err := s.Claim(ctx, stale.ID, base)
		require.NoError(t, err)
		_, err = s.Claim(ctx, fresh.ID, base.Add(time.Hour))
		require.NoError(t, err)

		n, err := s.FailStale(ctx, base.Add(30*time.Minute), "claim expired")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got := single(t, s, "alice@example.com")
		assert.Equal(t, reminder.StatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "claim expired", *got.ErrorMessage)

		assert.Equal(t, reminder.StatusProcessing, single(t, s, "bob@example.com").Status)
	})
}

func single(t *testing.T, s Store, email string) reminder.Task {
	t.Helper()
	tasks, err := s.ListByRecipient(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return tasks[0]
}
