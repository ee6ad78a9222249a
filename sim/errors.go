package sim

import "errors"

// Configuration errors are returned by NewSimulation before any event runs.
// Runtime errors abort the run from inside Simulate*; none of them is retryable.
var (
	ErrInvalidConfig      = errors.New("invalid network configuration")
	ErrUnknownPreemption  = errors.New("unknown pre-emption policy")
	ErrUnknownDiscipline  = errors.New("unknown queueing discipline")
	ErrBadSchedule        = errors.New("invalid schedule")
	ErrInvalidDestination = errors.New("routing destination outside the network")
	ErrInvalidSample      = errors.New("sampler returned an invalid duration")
	ErrInvalidBatchSize   = errors.New("batch size must be a non-negative integer")
)
