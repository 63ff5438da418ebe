package exports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

var nine = telemetry.ClockTime{Hour: 9}

func TestNextRunDaily(t *testing.T) {
	r := Recurrence{Frequency: FrequencyDaily, TimeOfDay: nine}
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{at(2026, 3, 10, 8, 59), at(2026, 3, 10, 9, 0)},
		{at(2026, 3, 10, 9, 0), at(2026, 3, 11, 9, 0)},
		{at(2026, 3, 10, 10, 0), at(2026, 3, 11, 9, 0)},
		{at(2026, 12, 31, 23, 0), at(2027, 1, 1, 9, 0)},
	}
	for _, tc := range cases {
		got, err := NextRun(r, tc.now)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.now.String())
	}
}

func TestNextRunWeekly(t *testing.T) {
	// 2026-03-10 is a Tuesday.
	r := Recurrence{Frequency: FrequencyWeekly, TimeOfDay: nine, DayOfWeek: time.Tuesday}
	got, err := NextRun(r, at(2026, 3, 10, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 10, 9, 0), got)

	got, err = NextRun(r, at(2026, 3, 10, 9, 30))
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 17, 9, 0), got)

	r.DayOfWeek = time.Monday
	got, err = NextRun(r, at(2026, 3, 10, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 16, 9, 0), got)
	assert.Equal(t, time.Monday, got.Weekday())
}

func TestNextRunMonthlyClampsShortMonths(t *testing.T) {
	r := Recurrence{Frequency: FrequencyMonthly, TimeOfDay: nine, DayOfMonth: 31}

	got, err := NextRun(r, at(2026, 4, 2, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, 4, 30, 9, 0), got)

	got, err = NextRun(r, at(2026, 1, 31, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, 2, 28, 9, 0), got)

	got, err = NextRun(r, at(2028, 1, 31, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2028, 2, 29, 9, 0), got)

	got, err = NextRun(r, at(2026, 12, 31, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2027, 1, 31, 9, 0), got)
}

func TestNextRunIsRecomputedNotAccumulated(t *testing.T) {
	r := Recurrence{Frequency: FrequencyMonthly, TimeOfDay: nine, DayOfMonth: 31}
	now := at(2026, 1, 1, 0, 0)
	var runs []time.Time
	for i := 0; i < 4; i++ {
		next, err := NextRun(r, now)
		require.NoError(t, err)
		runs = append(runs, next)
		now = next
	}
	assert.Equal(t, []time.Time{
		at(2026, 1, 31, 9, 0),
		at(2026, 2, 28, 9, 0),
		at(2026, 3, 31, 9, 0),
		at(2026, 4, 30, 9, 0),
	}, runs)
}

func TestNextRunUsesLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	r := Recurrence{Frequency: FrequencyDaily, TimeOfDay: nine}
	got, err := NextRun(r, time.Date(2026, 3, 10, 8, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), got.UTC())
}

func TestRecurrenceValidation(t *testing.T) {
	_, err := NextRun(Recurrence{Frequency: "hourly", TimeOfDay: nine}, time.Now())
	var schedErr *SchedulingError
	require.True(t, errors.As(err, &schedErr))
	assert.Equal(t, "frequency", schedErr.Field)

	_, err = NextRun(Recurrence{Frequency: FrequencyMonthly, TimeOfDay: nine, DayOfMonth: 32}, time.Now())
	require.True(t, errors.As(err, &schedErr))
	assert.Equal(t, "day_of_month", schedErr.Field)

	_, err = NextRun(Recurrence{Frequency: FrequencyDaily, TimeOfDay: telemetry.ClockTime{Hour: 24}}, time.Now())
	require.Error(t, err)
}
