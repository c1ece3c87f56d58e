package reminder

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a reminder task
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists every allowed status change. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusSent, StatusFailed, StatusCancelled},
}

// CanTransitionTo reports whether a task may move from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Valid checks the status against the known set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Task is a single scheduled reminder. Rows are append-only history:
// they are never deleted and never revisited after reaching a terminal status.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	RecipientPhone string     `json:"recipient_phone,omitempty"`
	Payload        string     `json:"payload"`
	Stage          Stage      `json:"stage"`
	Attempt        int        `json:"attempt"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

// Due reports whether a pending task may be processed at now.
func (t Task) Due(now time.Time) bool {
	return t.Status == StatusPending && !t.ScheduledFor.After(now)
}

// Message is what a channel sender receives for delivery.
type Message struct {
	TaskID         uuid.UUID
	Stage          Stage
	Attempt        int
	RecipientEmail string
	RecipientName  string
	RecipientPhone string
	Payload        string
}

func messageFromTask(t Task) Message {
	return Message{
		TaskID:         t.ID,
		Stage:          t.Stage,
		Attempt:        t.Attempt,
		RecipientEmail: t.RecipientEmail,
		RecipientName:  t.RecipientName,
		RecipientPhone: t.RecipientPhone,
		Payload:        t.Payload,
	}
}

// NormalizeEmail lower-cases and trims an address so it can be used as the recipient key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
