package exports

import (
	"errors"
	"fmt"
)

var (
	// ErrScheduleNotFound is returned when a schedule does not exist.
	ErrScheduleNotFound = errors.New("exports: schedule not found")
	// ErrNilSchedule is returned when saving a nil schedule.
	ErrNilSchedule = errors.New("exports: nil schedule")
	// ErrEmptyScheduleID is returned when a schedule id is empty.
	ErrEmptyScheduleID = errors.New("exports: empty schedule id")
)

// SchedulingError reports a malformed schedule. It is raised when the
// schedule is created or updated, never during execution.
type SchedulingError struct {
	Field  string
	Reason string
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("exports: invalid %s: %s", e.Field, e.Reason)
}

func schedulingError(field, format string, args ...any) *SchedulingError {
	return &SchedulingError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
