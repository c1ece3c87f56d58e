package reminder

import "errors"

var (
	// ErrStoreNil is returned when a nil store is provided
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrSchedulerNil is returned when the processor is built without a scheduler
	ErrSchedulerNil = errors.New("scheduler cannot be nil")

	// ErrOracleNil is returned when the processor is built without a conversion oracle
	ErrOracleNil = errors.New("conversion oracle cannot be nil")

	// ErrNoEmailSender is returned when no sender is registered for the email channel
	ErrNoEmailSender = errors.New("no sender registered for email channel")

	// ErrValidation wraps ValidationErrors returned by ScheduleStage and CancelAll
	ErrValidation = errors.New("invalid reminder input")

	// ErrUnknownStage is returned for a stage outside the fixed enumeration
	ErrUnknownStage = errors.New("unknown reminder stage")

	// ErrTaskNotFound is returned when a store operation targets a missing task
	ErrTaskNotFound = errors.New("reminder task not found")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid reminder status transition")

	// ErrInvalidChain is returned by ValidateChains for branching or cyclic chains
	ErrInvalidChain = errors.New("invalid reminder chain")

	// ErrUnknownProfile is returned when a delay profile name is not registered
	ErrUnknownProfile = errors.New("unknown delay profile")

	// ErrInvalidProfile is returned when a delay profile document cannot be parsed
	ErrInvalidProfile = errors.New("invalid delay profile")

	// ErrFailedToFetchDueTasks is returned by RunBatch when the store cannot be read
	ErrFailedToFetchDueTasks = errors.New("failed to fetch due reminder tasks")

	// ErrSendPanic is recorded when a channel sender panics
	ErrSendPanic = errors.New("channel sender panicked")

	// ErrSendTimeout is recorded when a channel sender does not return within the send timeout
	ErrSendTimeout = errors.New("channel sender timed out")
)
