package app

import (
	"errors"
	"fmt"
)

var ErrNotifierUnavailable = errors.New("notifier is not configured")
var ErrNotifierTimeout = errors.New("notifier call timed out")

// ConfigurationError aborts a whole batch before any item is processed.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DataError describes a member left out of a report because its data is inconsistent.
// It is logged, never returned to callers.
type DataError struct {
	MemberID int64
	Reason   string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("member %d skipped: %s", e.MemberID, e.Reason)
}
