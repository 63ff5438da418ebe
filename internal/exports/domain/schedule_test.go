package exports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

func validSchedule() ExportSchedule {
	return ExportSchedule{
		ID:                  "s1",
		Title:               "Daily energy",
		Frequency:           FrequencyDaily,
		TimeOfDay:           nine,
		Format:              reports.FormatCSV,
		ReadIntervalMinutes: 15,
		MeterRefs:           []string{"m1", "m2"},
		ParameterRefs:       []string{"Demand W", "kwh_on_peak"},
		Recipients:          Recipients{Email: masterdata.RecipientSet{GroupID: "ops"}},
		Enabled:             true,
	}
}

func TestScheduleValidate(t *testing.T) {
	require.NoError(t, validSchedule().Validate())

	cases := map[string]func(*ExportSchedule){
		"day_of_week":           func(s *ExportSchedule) { s.Frequency = FrequencyWeekly },
		"day_of_month":          func(s *ExportSchedule) { s.Frequency = FrequencyMonthly },
		"export_format":         func(s *ExportSchedule) { s.Format = "docx" },
		"read_interval_minutes": func(s *ExportSchedule) { s.ReadIntervalMinutes = 0 },
		"meter_refs":            func(s *ExportSchedule) { s.MeterRefs = []string{"m1", "m1"} },
		"parameter_refs":        func(s *ExportSchedule) { s.ParameterRefs = nil },
		"recipients":            func(s *ExportSchedule) { s.Recipients = Recipients{} },
		"window.date_from": func(s *ExportSchedule) {
			s.Window = WindowSpec{Fixed: true, DateFrom: "03/01/2026", DateTo: "2026-03-02"}
		},
		"window": func(s *ExportSchedule) {
			s.Window = WindowSpec{Fixed: true, DateFrom: "2026-03-02", DateTo: "2026-03-01"}
		},
	}
	for field, mutate := range cases {
		s := validSchedule()
		mutate(&s)
		err := s.Validate()
		var schedErr *SchedulingError
		require.True(t, errors.As(err, &schedErr), field)
		assert.Equal(t, field, schedErr.Field)
	}
}

func TestScheduleWeeklyAndMonthlyShapes(t *testing.T) {
	s := validSchedule()
	s.Frequency = FrequencyWeekly
	s.DayOfWeek = "Friday"
	require.NoError(t, s.Validate())
	r, err := s.Recurrence()
	require.NoError(t, err)
	assert.Equal(t, time.Friday, r.DayOfWeek)

	s.DayOfWeek = "funday"
	require.Error(t, s.Validate())

	s = validSchedule()
	s.Frequency = FrequencyMonthly
	s.DayOfMonth = 31
	require.NoError(t, s.Validate())
	s.DayOfWeek = "monday"
	require.Error(t, s.Validate())
}

func TestScheduleDue(t *testing.T) {
	now := at(2026, 3, 10, 9, 0)
	s := validSchedule()
	assert.False(t, s.Due(now))

	next := now
	s.NextRun = &next
	assert.True(t, s.Due(now))
	assert.False(t, s.Due(now.Add(-time.Minute)))

	s.Enabled = false
	assert.False(t, s.Due(now))
}

func TestResolveWindowImplicit(t *testing.T) {
	now := at(2026, 3, 10, 9, 0)
	s := validSchedule()

	w, err := ResolveWindow(s, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 9, 0, 0), w.Start)
	assert.Equal(t, at(2026, 3, 9, 23, 59).Add(time.Minute-time.Nanosecond), w.End)

	s.Frequency = FrequencyWeekly
	w, err = ResolveWindow(s, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 3, 0, 0), w.Start)
	assert.Equal(t, 9, w.End.Day())

	s.Frequency = FrequencyMonthly
	w, err = ResolveWindow(s, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, at(2026, 2, 1, 0, 0), w.Start)
	assert.Equal(t, 28, w.End.Day())
	assert.Equal(t, time.February, w.End.Month())
}

func TestResolveWindowFixedIncludesFinalMinute(t *testing.T) {
	s := validSchedule()
	s.Window = WindowSpec{
		Fixed:    true,
		DateFrom: "2026-03-01",
		DateTo:   "2026-03-01",
		TimeFrom: telemetry.ClockTime{Hour: 8},
		TimeTo:   telemetry.ClockTime{Hour: 17, Minute: 30},
	}
	w, err := ResolveWindow(s, at(2026, 3, 10, 9, 0), time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2026, 3, 1, 17, 30, 59, 0, time.UTC)))
	assert.False(t, w.Contains(at(2026, 3, 1, 17, 31)))
}

func TestDeliveryStatus(t *testing.T) {
	assert.Equal(t, RunSucceeded, DeliveryStatus([]ChannelOutcome{{Attempted: 2, Succeeded: 2}}))
	assert.Equal(t, RunPartiallySucceeded, DeliveryStatus([]ChannelOutcome{{Attempted: 2, Succeeded: 1, Failed: 1}}))
	assert.Equal(t, RunPartiallySucceeded, DeliveryStatus([]ChannelOutcome{{Attempted: 1, Succeeded: 1}, {Error: "no valid recipients"}}))
	assert.Equal(t, RunFailed, DeliveryStatus([]ChannelOutcome{{Attempted: 2, Failed: 2}}))
	assert.Equal(t, RunFailed, DeliveryStatus(nil))
}
