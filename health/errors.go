package health

import "errors"

var (
	// ErrCheckFailed marks a probe that found its component down.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a probe that outran the aggregator budget.
	ErrCheckTimeout = errors.New("health: check timeout")
)
