package conversion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/conversion"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

func newRegistry(t *testing.T) (*conversion.RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r, err := conversion.NewRedisRegistry(client, "")
	require.NoError(t, err)
	return r, srv
}

func TestRedisRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("nil client", func(t *testing.T) {
		_, err := conversion.NewRedisRegistry(nil, "k")
		assert.ErrorIs(t, err, conversion.ErrClientNil)
	})

	t.Run("mark, check and forget", func(t *testing.T) {
		r, srv := newRegistry(t)

		converted, err := r.HasConverted(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, converted)

		require.NoError(t, r.MarkConverted(ctx, " Alice@Example.com"))
		converted, err = r.HasConverted(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, converted)

		members, err := srv.Members(conversion.DefaultKey)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice@example.com"}, members)

		require.NoError(t, r.Forget(ctx, "ALICE@example.com"))
		converted, err = r.HasConverted(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, converted)
	})

	t.Run("server errors are returned", func(t *testing.T) {
		r, srv := newRegistry(t)
		srv.SetError("LOADING")

		_, err := r.HasConverted(ctx, "alice@example.com")
		assert.Error(t, err)
	})
}

func TestAny(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	yes := reminder.OracleFunc(func(context.Context, string) (bool, error) { return true, nil })
	boom := errors.New("boom")
	failing := reminder.OracleFunc(func(context.Context, string) (bool, error) { return false, boom })

	converted, err := conversion.Any().HasConverted(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, converted)

	converted, err = conversion.Any(nil, reminder.NeverConverted, yes).HasConverted(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, converted)

	converted, err = conversion.Any(yes, failing).HasConverted(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, converted, "short-circuits on the first positive answer")

	_, err = conversion.Any(reminder.NeverConverted, failing).HasConverted(ctx, "a@example.com")
	assert.ErrorIs(t, err, boom)
}
