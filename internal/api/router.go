package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/drip/pkg/httpserver"
	"github.com/dmitrymomot/drip/pkg/logger"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

// Scheduler enqueues campaign stages; satisfied by *reminder.Scheduler.
type Scheduler interface {
	ScheduleStage(ctx context.Context, req reminder.ScheduleRequest, opts ...reminder.ScheduleOption) (reminder.ScheduleResult, error)
}

// Canceller cancels pending reminders of a recipient; satisfied by *reminder.Canceller.
type Canceller interface {
	CancelAll(ctx context.Context, recipientEmail string) (int, error)
}

// BatchRunner processes due tasks; satisfied by *reminder.Processor.
type BatchRunner interface {
	RunBatch(ctx context.Context, now time.Time) (reminder.BatchResult, error)
	RunBatchLimit(ctx context.Context, now time.Time, limit int) (reminder.BatchResult, error)
}

// History lists the tasks of one recipient, newest first; satisfied by every reminder store.
type History interface {
	ListByRecipient(ctx context.Context, recipientEmail string) ([]reminder.Task, error)
}

// ConversionRecorder persists a conversion outside the task store, e.g. conversion.RedisRegistry.
type ConversionRecorder interface {
	MarkConverted(ctx context.Context, recipientEmail string) error
}

// RouterOptions wires the engine components into the HTTP API.
// Scheduler, Canceller and Runner are required; History and Conversions
// are optional and their endpoints are omitted or skipped when nil.
type RouterOptions struct {
	Scheduler   Scheduler
	Canceller   Canceller
	Runner      BatchRunner
	History     History
	Conversions ConversionRecorder

	Token          string // bearer token for /v1; empty disables auth
	Logger         *slog.Logger
	Clock          func() time.Time
	ReadyChecks    []httpserver.Check
	ReadyTimeout   time.Duration
	RequestTimeout time.Duration
}

// Router builds the dripd HTTP API:
//
//	POST /v1/reminders       schedule a stage
//	GET  /v1/reminders       task history of ?email=
//	POST /v1/reminders/run   process due tasks now, optional ?limit=
//	POST /v1/conversions     cancel pending reminders of a converted recipient
//	GET  /health/live
//	GET  /health/ready
func Router(opts RouterOptions) chi.Router {
	if opts.Scheduler == nil || opts.Canceller == nil || opts.Runner == nil {
		panic("api.Router: scheduler, canceller and runner are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	h := &handlers{
		scheduler:   opts.Scheduler,
		canceller:   opts.Canceller,
		runner:      opts.Runner,
		history:     opts.History,
		conversions: opts.Conversions,
		now:         opts.Clock,
		log:         opts.Logger.With(logger.Component("api")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/health", func(health chi.Router) {
		health.Get("/live", httpserver.LivenessHandler())
		health.Get("/ready", httpserver.ReadinessHandler(h.log, opts.ReadyTimeout, opts.ReadyChecks...))
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(requireToken(opts.Token, h.log))
		if opts.RequestTimeout > 0 {
			v1.Use(middleware.Timeout(opts.RequestTimeout))
		}

		v1.Post("/reminders", h.scheduleReminder)
		v1.Post("/reminders/run", h.runBatch)
		v1.Post("/conversions", h.recordConversion)
		if h.history != nil {
			v1.Get("/reminders", h.listReminders)
		}
	})

	return r
}
