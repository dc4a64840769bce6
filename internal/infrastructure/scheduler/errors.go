package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("scheduler: job queue is full")
	// ErrJobAlreadyQueued is returned when the same job is queued or running
	ErrJobAlreadyQueued = errors.New("scheduler: job already queued or running")
	// ErrInvalidJobType is returned for unknown job types
	ErrInvalidJobType = errors.New("scheduler: invalid job type")
	// ErrInvalidCronSpec is returned when a cron expression cannot be parsed
	ErrInvalidCronSpec = errors.New("scheduler: invalid cron expression")
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)
