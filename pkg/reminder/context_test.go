package reminder_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

func TestBatchIDExtractor(t *testing.T) {
	t.Parallel()

	_, ok := reminder.BatchIDExtractor(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	attr, ok := reminder.BatchIDExtractor(reminder.WithBatchID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, "batch_id", attr.Key)
	assert.Equal(t, id.String(), attr.Value.String())
}
