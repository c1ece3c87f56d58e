package reminder

import (
	"log/slog"
	"time"
)

const (
	// DefaultBatchLimit bounds how many due tasks a single run handles
	DefaultBatchLimit = 50
	// DefaultSendTimeout bounds a single channel sender call
	DefaultSendTimeout = 30 * time.Second

	markSentAttempts = 3
)

// ProcessorOption configures a Processor
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	retry       RetryPolicy
	batchLimit  int
	sendTimeout time.Duration
	staleAfter  time.Duration
	logger      *slog.Logger
}

// WithBatchLimit sets the default number of due tasks handled per run
func WithBatchLimit(limit int) ProcessorOption {
	return func(o *processorOptions) {
		if limit > 0 {
			o.batchLimit = limit
		}
	}
}

// WithRetryPolicy replaces the default single-attempt policy
func WithRetryPolicy(policy RetryPolicy) ProcessorOption {
	return func(o *processorOptions) {
		if policy != nil {
			o.retry = policy
		}
	}
}

// WithSendTimeout bounds each channel sender call. Zero disables the timeout.
func WithSendTimeout(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d >= 0 {
			o.sendTimeout = d
		}
	}
}

// WithStaleClaimTimeout fails tasks left in processing longer than d
// (e.g. by a crashed run) at the start of every batch.
// Only stores implementing AuditStore support it.
func WithStaleClaimTimeout(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithProcessorLogger sets a custom logger for the processor
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
