package reminder_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

func TestDelayProfiles(t *testing.T) {
	t.Parallel()

	verification := reminder.VerificationProfile()
	for _, st := range reminder.Stages() {
		assert.Equal(t, 5*time.Minute, verification.DelayFor(st), st)
	}

	production := reminder.ProductionProfile()
	assert.Equal(t, 24*time.Hour, production.DelayFor(reminder.StageVideoReminder))
	assert.Equal(t, 7*24*time.Hour, production.DelayFor(reminder.StageTestimonial3))
	assert.Zero(t, production.DelayFor(reminder.StageAppointmentReminder))
}

func TestProfileByName(t *testing.T) {
	t.Parallel()

	p, err := reminder.ProfileByName(reminder.ProfileVerification)
	require.NoError(t, err)
	assert.Equal(t, reminder.ProfileVerification, p.Name)

	_, err = reminder.ProfileByName("does-not-exist")
	assert.ErrorIs(t, err, reminder.ErrUnknownProfile)

	reminder.RegisterProfile(reminder.DelayPolicy{Name: "test-registered", Default: time.Second})
	p, err = reminder.ProfileByName("test-registered")
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.DelayFor(reminder.StageCheckingIn))
	assert.Contains(t, reminder.ProfileNames(), "test-registered")
}

func TestLoadProfiles(t *testing.T) {
	t.Parallel()

	t.Run("parses profiles", func(t *testing.T) {
		doc := `
profiles:
  staging:
    default: 1h
    stages:
      video_reminder: 30m
      checking_in: 2h
  demo:
    default: 10s
`
		got, err := reminder.LoadProfiles(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "demo", got[0].Name)
		assert.Equal(t, 10*time.Second, got[0].DelayFor(reminder.StageFinalReminder))

		assert.Equal(t, "staging", got[1].Name)
		assert.Equal(t, 30*time.Minute, got[1].DelayFor(reminder.StageVideoReminder))
		assert.Equal(t, 2*time.Hour, got[1].DelayFor(reminder.StageCheckingIn))
		assert.Equal(t, time.Hour, got[1].DelayFor(reminder.StageFinalReminder))
	})

	t.Run("empty document", func(t *testing.T) {
		got, err := reminder.LoadProfiles(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := reminder.LoadProfiles(strings.NewReader("profiles:\n  x:\n    stages:\n      nope: 1m\n"))
		assert.ErrorIs(t, err, reminder.ErrInvalidProfile)
		assert.ErrorIs(t, err, reminder.ErrUnknownStage)
	})

	t.Run("negative delay", func(t *testing.T) {
		_, err := reminder.LoadProfiles(strings.NewReader("profiles:\n  x:\n    default: -1m\n"))
		assert.ErrorIs(t, err, reminder.ErrInvalidProfile)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := reminder.LoadProfiles(strings.NewReader("profiles: [oops"))
		assert.ErrorIs(t, err, reminder.ErrInvalidProfile)
	})
}

func TestLinearRetry(t *testing.T) {
	t.Parallel()

	policy := reminder.LinearRetry{MaxAttempts: 3, Backoff: time.Minute}

	d, ok := policy.NextAttempt(reminder.Task{Attempt: 1}, nil)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, d)

	d, ok = policy.NextAttempt(reminder.Task{Attempt: 2}, nil)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, d)

	_, ok = policy.NextAttempt(reminder.Task{Attempt: 3}, nil)
	assert.False(t, ok)

	_, ok = reminder.NoRetry{}.NextAttempt(reminder.Task{Attempt: 1}, nil)
	assert.False(t, ok)
}
