package exports

import (
	"time"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

var (
	startOfDay = telemetry.ClockTime{Hour: 0, Minute: 0}
	endOfDay   = telemetry.ClockTime{Hour: 23, Minute: 59}
)

// ResolveWindow returns the data window for a run at now, in loc. Implicit
// windows cover the previous full period: yesterday for daily, the seven days
// before today for weekly, the previous calendar month for monthly.
func ResolveWindow(s ExportSchedule, now time.Time, loc *time.Location) (telemetry.Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if s.Window.Fixed {
		from, err := time.Parse(dateLayout, s.Window.DateFrom)
		if err != nil {
			return telemetry.Window{}, schedulingError("window.date_from", "expected YYYY-MM-DD, got %q", s.Window.DateFrom)
		}
		to, err := time.Parse(dateLayout, s.Window.DateTo)
		if err != nil {
			return telemetry.Window{}, schedulingError("window.date_to", "expected YYYY-MM-DD, got %q", s.Window.DateTo)
		}
		return telemetry.NewWindow(from, s.Window.TimeFrom, to, s.Window.TimeTo, loc)
	}

	local := now.In(loc)
	year, month, day := local.Date()
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	switch s.Frequency {
	case FrequencyWeekly:
		return telemetry.NewWindow(date(year, month, day-7), startOfDay, date(year, month, day-1), endOfDay, loc)
	case FrequencyMonthly:
		return telemetry.NewWindow(date(year, month-1, 1), startOfDay, date(year, month, 0), endOfDay, loc)
	default:
		yesterday := date(year, month, day-1)
		return telemetry.NewWindow(yesterday, startOfDay, yesterday, endOfDay, loc)
	}
}
