package logger

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TaskID records the reminder task identifier under the key "task_id".
func TaskID(id uuid.UUID) slog.Attr {
	return slog.String("task_id", id.String())
}

// Stage records the campaign stage under the key "stage".
func Stage(stage string) slog.Attr {
	return slog.String("stage", stage)
}

// Recipient records the recipient email under the key "recipient".
func Recipient(email string) slog.Attr {
	return slog.String("recipient", email)
}

// Channel records the delivery channel under the key "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// BatchID records the reminder batch identifier under the key "batch_id".
func BatchID(id uuid.UUID) slog.Attr {
	return slog.String("batch_id", id.String())
}
