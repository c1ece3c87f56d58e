package reminder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pendingKey struct {
	email string
	stage Stage
}

// MemoryStorage implements Store and AuditStore for tests and local development.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task

	// Indexes
	byStatus map[Status][]uuid.UUID
	pending  map[pendingKey]uuid.UUID
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks:    make(map[uuid.UUID]*Task),
		byStatus: make(map[Status][]uuid.UUID),
		pending:  make(map[pendingKey]uuid.UUID),
	}
}

// InsertIfAbsent implements Store.
func (ms *MemoryStorage) InsertIfAbsent(ctx context.Context, task *Task) (bool, error) {
	if task == nil {
		return false, errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := pendingKey{email: task.RecipientEmail, stage: task.Stage}
	if _, exists := ms.pending[key]; exists {
		return false, nil
	}
	if _, exists := ms.tasks[task.ID]; exists {
		return false, fmt.Errorf("task with ID %s already exists", task.ID)
	}

	// Clone task to prevent external modifications
	taskCopy := *task
	taskCopy.Status = StatusPending
	ms.tasks[task.ID] = &taskCopy

	ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], task.ID)
	ms.pending[key] = task.ID

	return true, nil
}

// DueTasks implements Store. A non-positive limit means DefaultBatchLimit.
func (ms *MemoryStorage) DueTasks(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	due := make([]Task, 0)
	for _, id := range ms.byStatus[StatusPending] {
		task := ms.tasks[id]
		if task.Due(now) {
			due = append(due, *task)
		}
	}

	slices.SortFunc(due, compareDue)

	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Claim implements Store.
func (ms *MemoryStorage) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[id]
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != StatusPending {
		return false, nil
	}

	claimedAt := now
	task.ClaimedAt = &claimedAt
	ms.setStatus(task, StatusProcessing)

	return true, nil
}

// MarkSent implements Store.
func (ms *MemoryStorage) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(id, StatusSent)
	if err != nil {
		return err
	}

	task.SentAt = &sentAt
	ms.setStatus(task, StatusSent)
	return nil
}

// MarkFailed implements Store.
func (ms *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(id, StatusFailed)
	if err != nil {
		return err
	}

	task.ErrorMessage = &errMsg
	ms.setStatus(task, StatusFailed)
	return nil
}

// MarkCancelled implements Store.
func (ms *MemoryStorage) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(id, StatusCancelled)
	if err != nil {
		return err
	}

	ms.setStatus(task, StatusCancelled)
	return nil
}

// CancelAllPending implements Store.
func (ms *MemoryStorage) CancelAllPending(ctx context.Context, recipientEmail string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var matched []*Task
	for _, id := range ms.byStatus[StatusPending] {
		if task := ms.tasks[id]; task.RecipientEmail == recipientEmail {
			matched = append(matched, task)
		}
	}

	for _, task := range matched {
		ms.setStatus(task, StatusCancelled)
	}

	return len(matched), nil
}

// ListByRecipient implements AuditStore.
func (ms *MemoryStorage) ListByRecipient(ctx context.Context, recipientEmail string) ([]Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Task
	for _, task := range ms.tasks {
		if task.RecipientEmail == recipientEmail {
			out = append(out, *task)
		}
	}

	slices.SortFunc(out, func(a, b Task) int {
		return -compareDue(a, b)
	})
	return out, nil
}

// FailStale implements AuditStore.
func (ms *MemoryStorage) FailStale(ctx context.Context, claimedBefore time.Time, errMsg string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stale []*Task
	for _, id := range ms.byStatus[StatusProcessing] {
		task := ms.tasks[id]
		if task.ClaimedAt != nil && task.ClaimedAt.Before(claimedBefore) {
			stale = append(stale, task)
		}
	}

	for _, task := range stale {
		msg := errMsg
		task.ErrorMessage = &msg
		ms.setStatus(task, StatusFailed)
	}

	return len(stale), nil
}

// Get returns a copy of a task by id.
func (ms *MemoryStorage) Get(id uuid.UUID) (Task, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// All returns a copy of every stored task ordered by due time.
func (ms *MemoryStorage) All() []Task {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Task, 0, len(ms.tasks))
	for _, task := range ms.tasks {
		out = append(out, *task)
	}
	slices.SortFunc(out, compareDue)
	return out
}

// Helper methods

// processingTask looks up a task that must currently be processing.
// Must be called while holding the write lock.
func (ms *MemoryStorage) processingTask(id uuid.UUID, next Status) (*Task, error) {
	task, exists := ms.tasks[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != StatusProcessing || !task.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: task %s is %s, cannot become %s", ErrInvalidTransition, id, task.Status, next)
	}
	return task, nil
}

// setStatus updates the status and both indexes. Must be called while holding the write lock.
func (ms *MemoryStorage) setStatus(task *Task, next Status) {
	prev := task.Status
	ms.byStatus[prev] = slices.DeleteFunc(ms.byStatus[prev], func(id uuid.UUID) bool {
		return id == task.ID
	})
	ms.byStatus[next] = append(ms.byStatus[next], task.ID)

	if prev == StatusPending {
		key := pendingKey{email: task.RecipientEmail, stage: task.Stage}
		if ms.pending[key] == task.ID {
			delete(ms.pending, key)
		}
	}

	task.Status = next
}

func compareDue(a, b Task) int {
	if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}
