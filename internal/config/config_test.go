package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/internal/config"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

func TestLoad(t *testing.T) {
	t.Run("defaults with dev email", func(t *testing.T) {
		t.Setenv("EMAIL_DEV_DIR", t.TempDir())

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "dripd", cfg.App.ServiceName)
		assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
		assert.Equal(t, "production", cfg.Drip.DelayProfile)
		assert.Equal(t, 50, cfg.Drip.BatchLimit)
		assert.Equal(t, 30*time.Second, cfg.Drip.SendTimeout)
		assert.Equal(t, "@every 1m", cfg.Drip.TriggerSchedule)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
		assert.Equal(t, "drip:converted", cfg.Redis.ConversionKey)
		assert.Equal(t, "DRIP", cfg.SMS.SenderID)
		assert.False(t, cfg.SMS.Enabled())
	})

	t.Run("driver is normalised", func(t *testing.T) {
		t.Setenv("EMAIL_DEV_DIR", t.TempDir())
		t.Setenv("DRIP_STORE_DRIVER", " Postgres ")
		t.Setenv("PG_CONN_URL", "postgres://localhost/drip")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
		assert.Equal(t, "postgres://localhost/drip", cfg.Postgres.ConnectionString)
	})

	t.Run("env file", func(t *testing.T) {
		t.Setenv("EMAIL_DEV_DIR", t.TempDir())
		// godotenv never overrides variables that are already set, even to "".
		t.Setenv("DRIP_STORE_DRIVER", "")
		t.Setenv("DRIP_SQLITE_PATH", "")
		require.NoError(t, os.Unsetenv("DRIP_STORE_DRIVER"))
		require.NoError(t, os.Unsetenv("DRIP_SQLITE_PATH"))

		cfg, err := config.Load("testdata/dripd.env")
		require.NoError(t, err)
		assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
		assert.Equal(t, "/tmp/drip-from-file.db", cfg.Store.SQLitePath)
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := config.Load("testdata/nope.env")
		assert.Error(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("DRIP_STORE_DRIVER", "cassandra")
		_, err := config.Load()
		require.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Contains(t, err.Error(), `unknown store driver "cassandra"`)
		assert.Contains(t, err.Error(), "POSTMARK_SERVER_TOKEN")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() config.Config {
		var c config.Config
		c.Store.Driver = config.DriverMemory
		c.Drip.BatchLimit = 10
		c.Drip.RetryMaxAttempts = 1
		c.Email.PostmarkServerToken = "token"
		return c
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"postgres without url", func(c *config.Config) { c.Store.Driver = config.DriverPostgres }, "PG_CONN_URL"},
		{"sqlite without path", func(c *config.Config) { c.Store.Driver = config.DriverSQLite }, "DRIP_SQLITE_PATH"},
		{"appointments without postgres", func(c *config.Config) { c.Drip.AppointmentsQuery = "SELECT true" }, "DRIP_APPOINTMENTS_QUERY"},
		{"batch limit", func(c *config.Config) { c.Drip.BatchLimit = 0 }, "DRIP_BATCH_LIMIT"},
		{"retry attempts", func(c *config.Config) { c.Drip.RetryMaxAttempts = 0 }, "DRIP_RETRY_MAX_ATTEMPTS"},
		{"no email transport", func(c *config.Config) { c.Email.PostmarkServerToken = "" }, "EMAIL_DEV_DIR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDripPolicies(t *testing.T) {
	t.Parallel()

	t.Run("built-in profile", func(t *testing.T) {
		t.Parallel()
		p, err := config.Drip{DelayProfile: reminder.ProfileVerification}.DelayPolicy()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, p.DelayFor(reminder.StageCheckingIn))
	})

	t.Run("profile from file", func(t *testing.T) {
		t.Parallel()
		p, err := config.Drip{
			DelayProfile:      "config_test_fast",
			DelayProfilesFile: "testdata/profiles.yaml",
		}.DelayPolicy()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, p.DelayFor(reminder.StageVideoReminder))
		assert.Equal(t, 30*time.Second, p.DelayFor(reminder.StageTestimonial1))
	})

	t.Run("unknown profile", func(t *testing.T) {
		t.Parallel()
		_, err := config.Drip{DelayProfile: "nope"}.DelayPolicy()
		assert.ErrorIs(t, err, reminder.ErrUnknownProfile)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := config.Drip{DelayProfile: "production", DelayProfilesFile: "testdata/missing.yaml"}.DelayPolicy()
		assert.Error(t, err)
	})

	t.Run("retry policy", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, reminder.NoRetry{}, config.Drip{RetryMaxAttempts: 1}.RetryPolicy())
		assert.Equal(t,
			reminder.LinearRetry{MaxAttempts: 3, Backoff: time.Minute},
			config.Drip{RetryMaxAttempts: 3, RetryBackoff: time.Minute}.RetryPolicy())
	})
}
