package telemetry

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidWindow is returned when a window ends before it starts.
	ErrInvalidWindow = errors.New("telemetry: invalid window")
)

// Window is a closed time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from calendar dates and wall-clock minutes. The end
// bound covers the whole final minute, so 17:30 means up to 17:30:59.999999999.
func NewWindow(dateFrom time.Time, timeFrom ClockTime, dateTo time.Time, timeTo ClockTime, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(dateFrom.Year(), dateFrom.Month(), dateFrom.Day(), timeFrom.Hour, timeFrom.Minute, 0, 0, loc)
	endMinute := time.Date(dateTo.Year(), dateTo.Month(), dateTo.Day(), timeTo.Hour, timeTo.Minute, 0, 0, loc)
	w := Window{Start: start, End: endMinute.Add(time.Minute - time.Nanosecond)}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate checks window bounds.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrInvalidWindow
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidWindow, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether ts falls inside the window, both ends inclusive.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// ClockTime is a wall-clock hour and minute.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "15:04".
func ParseClockTime(value string) (ClockTime, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return ClockTime{}, fmt.Errorf("telemetry: invalid clock time %q", value)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats as "15:04".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Valid reports whether the clock time is within a day.
func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// MarshalText implements encoding.TextMarshaler.
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
