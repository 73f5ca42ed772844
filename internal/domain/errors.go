package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrFeedUnavailable   = errors.New("feed unavailable")
	ErrUnknownOutcome    = errors.New("unknown outcome kind")
	ErrEvaluationUnknown = errors.New("evaluation id not tracked")
	ErrMarketDisabled    = errors.New("market disabled")
	ErrLockHeld          = errors.New("lock already held")
)
