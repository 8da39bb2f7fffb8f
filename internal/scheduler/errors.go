package scheduler

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrTickFailed      = errors.ErrTickFailed
	ErrReadMetrics     = errors.ErrReadMetrics
	ErrStatusQuery     = errors.ErrStatusQuery
	ErrReadTimeout     = errors.ErrTimeout
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrMissingDepend   = errors.ErrorCode("scheduler_missing_dependency")
)
