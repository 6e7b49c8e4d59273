package engine

import "errors"

// Errors surfaced to callers of the orchestrator. Once a job exists,
// failures stay internal and are visible only through logs and stats.
var (
	ErrAdNotOwned         = errors.New("engine: ad does not belong to tenant")
	ErrEmptyContent       = errors.New("engine: ad has no content")
	ErrNoUsableSession    = errors.New("engine: no usable session")
	ErrNoDeliverableGroup = errors.New("engine: no deliverable group")
	ErrJobNotFound        = errors.New("engine: job not found")
	ErrJobStillActive     = errors.New("engine: job still active")
	ErrAdAlreadyRunning   = errors.New("engine: a job for this ad is already running")
)
