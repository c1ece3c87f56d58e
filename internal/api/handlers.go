package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/drip/pkg/logger"
	"github.com/dmitrymomot/drip/pkg/reminder"
)

type handlers struct {
	scheduler   Scheduler
	canceller   Canceller
	runner      BatchRunner
	history     History
	conversions ConversionRecorder
	now         func() time.Time
	log         *slog.Logger
}

type scheduleRequest struct {
	Stage          string     `json:"stage"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name"`
	RecipientPhone string     `json:"recipient_phone"`
	Payload        string     `json:"payload"`
	ScheduledAt    *time.Time `json:"scheduled_at"` // overrides the delay policy
}

func (h *handlers) scheduleReminder(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var opts []reminder.ScheduleOption
	if req.ScheduledAt != nil {
		opts = append(opts, reminder.WithScheduledAt(req.ScheduledAt.UTC()))
	}

	res, err := h.scheduler.ScheduleStage(r.Context(), reminder.ScheduleRequest{
		Stage:          reminder.Stage(req.Stage),
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		Payload:        req.Payload,
	}, opts...)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type conversionRequest struct {
	RecipientEmail string `json:"recipient_email"`
}

type conversionResponse struct {
	CancelledCount int  `json:"cancelled_count"`
	Recorded       bool `json:"recorded"`
}

// recordConversion cancels first: the task store is authoritative, the
// registry only closes the window for tasks that are already claimed.
func (h *handlers) recordConversion(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	count, err := h.canceller.CancelAll(r.Context(), req.RecipientEmail)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := conversionResponse{CancelledCount: count}
	if h.conversions != nil {
		if err := h.conversions.MarkConverted(r.Context(), req.RecipientEmail); err != nil {
			h.log.ErrorContext(r.Context(), "failed to record conversion",
				logger.Recipient(reminder.NormalizeEmail(req.RecipientEmail)),
				logger.Error(err))
		} else {
			resp.Recorded = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) runBatch(w http.ResponseWriter, r *http.Request) {
	var (
		res reminder.BatchResult
		err error
	)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit <= 0 {
			writeError(w, r, h.log, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		res, err = h.runner.RunBatchLimit(r.Context(), h.now(), limit)
	} else {
		res, err = h.runner.RunBatch(r.Context(), h.now())
	}

	if err != nil {
		h.log.ErrorContext(r.Context(), "manual batch run failed", logger.Error(err))
		writeError(w, r, h.log, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listReminders(w http.ResponseWriter, r *http.Request) {
	email := reminder.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, r, h.log, fmt.Errorf("%w: email query parameter is required", ErrBadRequest))
		return
	}

	tasks, err := h.history.ListByRecipient(r.Context(), email)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if tasks == nil {
		tasks = []reminder.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}
