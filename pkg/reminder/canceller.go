package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/drip/pkg/logger"
)

// Canceller halts every in-flight chain of a recipient when they convert.
type Canceller struct {
	store  Store
	logger *slog.Logger
}

// CancellerOption configures a Canceller
type CancellerOption func(*Canceller)

// WithCancellerLogger sets a custom logger for the canceller
func WithCancellerLogger(logger *slog.Logger) CancellerOption {
	return func(c *Canceller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCanceller creates a Canceller.
func NewCanceller(store Store, opts ...CancellerOption) (*Canceller, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	c := &Canceller{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("reminder.canceller"))

	return c, nil
}

// MustNewCanceller is like NewCanceller but panics on error.
func MustNewCanceller(store Store, opts ...CancellerOption) *Canceller {
	c, err := NewCanceller(store, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// CancelAll moves every pending task of the recipient to cancelled and returns
// how many changed. Calling it again right away returns zero.
func (c *Canceller) CancelAll(ctx context.Context, recipientEmail string) (int, error) {
	email := NormalizeEmail(recipientEmail)
	if email == "" {
		var ve ValidationErrors
		ve.add("recipient_email", "field is required")
		return 0, ve.err()
	}

	count, err := c.store.CancelAllPending(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending reminders for %s: %w", email, err)
	}

	c.logger.InfoContext(ctx, "pending reminders cancelled",
		logger.Recipient(email),
		slog.Int("cancelled_count", count))

	return count, nil
}
