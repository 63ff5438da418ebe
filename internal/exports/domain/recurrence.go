package exports

import (
	"strings"
	"time"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

// Frequency is how often a schedule fires.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether the frequency is supported.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday parses a weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, bool) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(value))]
	return day, ok
}

// Recurrence is the firing rule of a schedule.
type Recurrence struct {
	Frequency  Frequency
	TimeOfDay  telemetry.ClockTime
	DayOfWeek  time.Weekday
	DayOfMonth int
}

// Validate checks that the rule is well formed.
func (r Recurrence) Validate() error {
	if !r.Frequency.Valid() {
		return schedulingError("frequency", "unsupported frequency %q", r.Frequency)
	}
	if !r.TimeOfDay.Valid() {
		return schedulingError("time_of_day", "%s is not a time of day", r.TimeOfDay)
	}
	switch r.Frequency {
	case FrequencyWeekly:
		if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
			return schedulingError("day_of_week", "weekly schedule needs a day of week")
		}
	case FrequencyMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return schedulingError("day_of_month", "monthly schedule needs a day between 1 and 31, got %d", r.DayOfMonth)
		}
	}
	return nil
}

// NextRun returns the first firing instant strictly after now, in now's
// location. It is recomputed from scratch on every call; never add a period to
// a previous result, since month lengths vary.
func NextRun(r Recurrence, now time.Time) (time.Time, error) {
	if err := r.Validate(); err != nil {
		return time.Time{}, err
	}
	loc := now.Location()
	year, month, day := now.Date()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, r.TimeOfDay.Hour, r.TimeOfDay.Minute, 0, 0, loc)
	}

	switch r.Frequency {
	case FrequencyDaily:
		next := at(year, month, day)
		if !next.After(now) {
			next = at(year, month, day+1)
		}
		return next, nil
	case FrequencyWeekly:
		delta := (int(r.DayOfWeek) - int(now.Weekday()) + 7) % 7
		next := at(year, month, day+delta)
		if delta == 0 && !next.After(now) {
			next = at(year, month, day+7)
		}
		return next, nil
	default:
		next := at(year, month, clampDay(year, month, r.DayOfMonth))
		if !next.After(now) {
			first := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
			y, m := first.Year(), first.Month()
			next = at(y, m, clampDay(y, m, r.DayOfMonth))
		}
		return next, nil
	}
}

// clampDay limits day to the last day of the month.
func clampDay(year int, month time.Month, day int) int {
	last := daysIn(year, month)
	if day > last {
		return last
	}
	return day
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
