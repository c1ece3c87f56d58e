// Package conversion provides reminder.ConversionOracle implementations.
package conversion

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

// DefaultKey is the Redis set holding converted recipient emails.
const DefaultKey = "drip:converted"

// ErrClientNil is returned when the registry is built without a Redis client.
var ErrClientNil = errors.New("redis client cannot be nil")

// RedisRegistry records conversions in a Redis set keyed by normalized email.
type RedisRegistry struct {
	client redis.UniversalClient
	key    string
}

var _ reminder.ConversionOracle = (*RedisRegistry)(nil)

// NewRedisRegistry creates a registry on key, or DefaultKey when key is empty.
func NewRedisRegistry(client redis.UniversalClient, key string) (*RedisRegistry, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if key == "" {
		key = DefaultKey
	}
	return &RedisRegistry{client: client, key: key}, nil
}

// MarkConverted records that the recipient converted.
func (r *RedisRegistry) MarkConverted(ctx context.Context, recipientEmail string) error {
	if err := r.client.SAdd(ctx, r.key, reminder.NormalizeEmail(recipientEmail)).Err(); err != nil {
		return fmt.Errorf("failed to mark %s as converted: %w", recipientEmail, err)
	}
	return nil
}

// HasConverted implements reminder.ConversionOracle.
func (r *RedisRegistry) HasConverted(ctx context.Context, recipientEmail string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, reminder.NormalizeEmail(recipientEmail)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check conversion of %s: %w", recipientEmail, err)
	}
	return ok, nil
}

// Forget removes a recipient from the registry, e.g. after a cancelled booking.
func (r *RedisRegistry) Forget(ctx context.Context, recipientEmail string) error {
	if err := r.client.SRem(ctx, r.key, reminder.NormalizeEmail(recipientEmail)).Err(); err != nil {
		return fmt.Errorf("failed to forget conversion of %s: %w", recipientEmail, err)
	}
	return nil
}
