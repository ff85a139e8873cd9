package retry

import "errors"

// Polling policy errors.
var (
	// ErrInvalidInterval is returned when a sleep bound is not positive.
	ErrInvalidInterval = errors.New("polling interval must be positive")

	// ErrMaxBelowMin is returned when the maximum sleep is below the minimum.
	ErrMaxBelowMin = errors.New("maximum polling interval must not be below the minimum")
)
