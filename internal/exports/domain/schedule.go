package exports

import (
	"strings"
	"time"

	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

const dateLayout = "2006-01-02"

// WindowSpec is the data window of a schedule. When Fixed is false the window
// is the most recent full period for the schedule's frequency.
type WindowSpec struct {
	Fixed    bool                `json:"fixed"`
	DateFrom string              `json:"date_from,omitempty"`
	DateTo   string              `json:"date_to,omitempty"`
	TimeFrom telemetry.ClockTime `json:"time_from"`
	TimeTo   telemetry.ClockTime `json:"time_to"`
}

// Recipients holds one recipient set per channel.
type Recipients struct {
	Email     masterdata.RecipientSet `json:"email"`
	Messaging masterdata.RecipientSet `json:"messaging"`
}

// Empty reports whether no channel has recipients.
func (r Recipients) Empty() bool {
	return r.Email.Empty() && r.Messaging.Empty()
}

// ExportSchedule is a persisted recurring export job.
type ExportSchedule struct {
	ID                  string
	Title               string
	Frequency           Frequency
	TimeOfDay           telemetry.ClockTime
	DayOfWeek           string
	DayOfMonth          int
	Format              reports.Format
	ReadIntervalMinutes int
	MeterRefs           []string
	ParameterRefs       []string
	Window              WindowSpec
	Recipients          Recipients
	IncludeBilling      bool
	Enabled             bool
	LastRun             *time.Time
	NextRun             *time.Time
	RunCount            int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Recurrence extracts the firing rule.
func (s ExportSchedule) Recurrence() (Recurrence, error) {
	r := Recurrence{
		Frequency:  s.Frequency,
		TimeOfDay:  s.TimeOfDay,
		DayOfMonth: s.DayOfMonth,
	}
	if s.Frequency == FrequencyWeekly {
		day, ok := ParseWeekday(s.DayOfWeek)
		if !ok {
			return Recurrence{}, schedulingError("day_of_week", "weekly schedule needs a weekday name, got %q", s.DayOfWeek)
		}
		r.DayOfWeek = day
	}
	return r, r.Validate()
}

// Validate rejects malformed schedules.
func (s ExportSchedule) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return schedulingError("id", "empty id")
	}
	if _, err := s.Recurrence(); err != nil {
		return err
	}
	if s.Frequency != FrequencyWeekly && strings.TrimSpace(s.DayOfWeek) != "" {
		return schedulingError("day_of_week", "only weekly schedules take a day of week")
	}
	if s.Frequency != FrequencyMonthly && s.DayOfMonth != 0 {
		return schedulingError("day_of_month", "only monthly schedules take a day of month")
	}
	if !s.Format.Valid() {
		return schedulingError("export_format", "unsupported format %q", s.Format)
	}
	if s.ReadIntervalMinutes < 1 || s.ReadIntervalMinutes > 1440 {
		return schedulingError("read_interval_minutes", "must be between 1 and 1440, got %d", s.ReadIntervalMinutes)
	}
	if len(s.MeterRefs) == 0 {
		return schedulingError("meter_refs", "at least one meter is required")
	}
	if err := uniqueRefs("meter_refs", s.MeterRefs); err != nil {
		return err
	}
	if len(s.ParameterRefs) == 0 {
		return schedulingError("parameter_refs", "at least one parameter is required")
	}
	if err := uniqueRefs("parameter_refs", s.ParameterRefs); err != nil {
		return err
	}
	if err := s.Window.validate(); err != nil {
		return err
	}
	if s.Recipients.Empty() {
		return schedulingError("recipients", "at least one email or messaging recipient is required")
	}
	return nil
}

// NextRunAfter computes the next firing instant after now.
func (s ExportSchedule) NextRunAfter(now time.Time) (time.Time, error) {
	r, err := s.Recurrence()
	if err != nil {
		return time.Time{}, err
	}
	return NextRun(r, now)
}

// SameRecurrence reports whether two schedules fire on the same rule.
func (s ExportSchedule) SameRecurrence(other ExportSchedule) bool {
	return s.Frequency == other.Frequency &&
		s.TimeOfDay == other.TimeOfDay &&
		strings.EqualFold(strings.TrimSpace(s.DayOfWeek), strings.TrimSpace(other.DayOfWeek)) &&
		s.DayOfMonth == other.DayOfMonth
}

// Due reports whether the schedule should run at now.
func (s ExportSchedule) Due(now time.Time) bool {
	return s.Enabled && s.NextRun != nil && !s.NextRun.After(now)
}

func uniqueRefs(field string, refs []string) error {
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return schedulingError(field, "empty reference")
		}
		if _, dup := seen[ref]; dup {
			return schedulingError(field, "duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
	return nil
}

func (w WindowSpec) validate() error {
	if !w.Fixed {
		return nil
	}
	from, err := time.Parse(dateLayout, w.DateFrom)
	if err != nil {
		return schedulingError("window.date_from", "expected YYYY-MM-DD, got %q", w.DateFrom)
	}
	to, err := time.Parse(dateLayout, w.DateTo)
	if err != nil {
		return schedulingError("window.date_to", "expected YYYY-MM-DD, got %q", w.DateTo)
	}
	if !w.TimeFrom.Valid() || !w.TimeTo.Valid() {
		return schedulingError("window", "invalid time of day")
	}
	if _, err := telemetry.NewWindow(from, w.TimeFrom, to, w.TimeTo, time.UTC); err != nil {
		return schedulingError("window", "end is before start")
	}
	return nil
}
