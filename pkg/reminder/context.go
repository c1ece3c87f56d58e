package reminder

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/drip/pkg/logger"
)

type batchIDKey struct{}

// WithBatchID stores the id of the running batch in ctx.
func WithBatchID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchIDFromContext returns the id of the batch the context belongs to.
func BatchIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(batchIDKey{}).(uuid.UUID)
	return id, ok
}

// BatchIDExtractor adds the batch id to every log record written with a batch context.
// It matches logger.ContextExtractor.
func BatchIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := BatchIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.BatchID(id), true
}
