package sqlitestore_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/reminder"
	"github.com/dmitrymomot/drip/pkg/reminder/sqlitestore"
	"github.com/dmitrymomot/drip/pkg/reminder/storetest"
)

func openMemory(t *testing.T) *sqlitestore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:drip_%s?mode=memory&cache=shared", uuid.NewString())
	s, err := sqlitestore.Open(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return openMemory(t)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := sqlitestore.New(nil)
	assert.ErrorIs(t, err, reminder.ErrStoreNil)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "drip.db")

	s, err := sqlitestore.Open(ctx, path, nil)
	require.NoError(t, err)
	task := storetest.NewTask("alice@example.com", reminder.StageVideoReminder, time.Now())
	created, err := s.InsertIfAbsent(ctx, task)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, s.Close())

	s, err = sqlitestore.Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	tasks, err := s.ListByRecipient(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.True(t, task.ScheduledFor.Equal(tasks[0].ScheduledFor))
}

func TestStore_WithProcessor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openMemory(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	scheduler, err := reminder.NewScheduler(store,
		reminder.WithDelayPolicy(reminder.VerificationProfile()),
		reminder.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	var sent []reminder.Stage
	processor, err := reminder.NewProcessor(store, scheduler, reminder.NeverConverted,
		map[reminder.Channel]reminder.ChannelSender{
			reminder.ChannelEmail: reminder.SenderFunc(func(_ context.Context, msg reminder.Message) error {
				sent = append(sent, msg.Stage)
				return nil
			}),
		})
	require.NoError(t, err)

	_, err = scheduler.ScheduleStage(ctx, reminder.ScheduleRequest{
		Stage: reminder.StageVideoReminder, RecipientEmail: "alice@example.com", Payload: "https://example.com/v",
	})
	require.NoError(t, err)

	res, err := processor.RunBatch(ctx, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, []reminder.Stage{reminder.StageVideoReminder}, sent)

	due, err := store.DueTasks(ctx, now.Add(10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, reminder.StageCheckingIn, due[0].Stage)
}
