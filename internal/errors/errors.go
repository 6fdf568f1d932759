package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Every operation boundary converts
// external failures into one of these categories; nothing inside a controller
// is allowed to escape uncategorized.
var (
	// ErrExpectedAbsence - the target UI element or host command is not present.
	// A no-op, not a failure; the poller treats it the same as success-with-nothing-to-do.
	ErrExpectedAbsence = errors.New("expected absence")

	// ErrTransient - network/socket timeout or non-200 response. Recorded in
	// history, no retry before the next natural tick.
	ErrTransient = errors.New("transient error")

	// ErrReauthRequired - missing, expired, or invalid-grant credential. The
	// user must re-authorize; never retried with stale tokens.
	ErrReauthRequired = errors.New("reauthorization required")

	// ErrInvalidConfig - malformed persisted JSON or cron expression. Recovered
	// by overwriting with defaults.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDisposed - operation attempted on a disposed controller.
	ErrDisposed = errors.New("controller disposed")

	// ErrInternal - anything else.
	ErrInternal = errors.New("internal error")
)

func Transient(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrTransient)
}

func InvalidConfig(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidConfig)
}

func Internal(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInternal)
}
