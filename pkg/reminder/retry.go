package reminder

import "time"

// RetryPolicy decides whether a failed send gets another attempt.
// The failed task itself stays failed; a retry is a new pending row
// for the same stage with Attempt+1.
type RetryPolicy interface {
	NextAttempt(task Task, sendErr error) (delay time.Duration, ok bool)
}

// NoRetry keeps single-attempt-per-stage delivery. A failed stage is a dead end
// until an operator schedules it again.
type NoRetry struct{}

func (NoRetry) NextAttempt(Task, error) (time.Duration, bool) {
	return 0, false
}

// LinearRetry retries up to MaxAttempts total attempts, waiting Backoff*attempt
// before each new one.
type LinearRetry struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (r LinearRetry) NextAttempt(task Task, _ error) (time.Duration, bool) {
	attempt := max(task.Attempt, 1)
	if attempt >= r.MaxAttempts {
		return 0, false
	}
	return time.Duration(attempt) * r.Backoff, true
}
