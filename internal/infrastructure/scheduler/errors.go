package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownJobKind is returned for job kinds the executor cannot dispatch
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrInvalidSchedule is returned when the full-sync schedule cannot be parsed
	ErrInvalidSchedule = errors.New("invalid full sync schedule")
)
