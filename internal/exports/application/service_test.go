package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exports "metering-dashboard/internal/exports/domain"
	exmemory "metering-dashboard/internal/exports/infrastructure/memory"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

func newTestService(t *testing.T, now time.Time) (*ScheduleService, *fakeClock) {
	t.Helper()
	clock := newFakeClock(now)
	svc, err := NewScheduleService(exmemory.NewScheduleRepository(), exmemory.NewRunRepository(), WithServiceClock(clock))
	require.NoError(t, err)
	return svc, clock
}

func TestCreateRejectsMalformedRecurrence(t *testing.T) {
	svc, _ := newTestService(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	s := dailySchedule("weekly-no-day")
	s.Frequency = exports.FrequencyWeekly

	_, err := svc.Create(context.Background(), s)
	var schedErr *exports.SchedulingError
	require.True(t, errors.As(err, &schedErr))
	assert.Equal(t, "day_of_week", schedErr.Field)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAssignsIDAndNextRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	s := dailySchedule("")
	s.RunCount = 7
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.RunCount)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), *created.NextRun)
	assert.Equal(t, now, created.CreatedAt)

	_, err = svc.Create(ctx, *created)
	var schedErr *exports.SchedulingError
	require.True(t, errors.As(err, &schedErr))
	assert.Equal(t, "id", schedErr.Field)

	off := dailySchedule("off")
	off.Enabled = false
	disabled, err := svc.Create(ctx, off)
	require.NoError(t, err)
	assert.Nil(t, disabled.NextRun)
}

func TestUpdateRecomputesOnlyWhenRecurrenceChanges(t *testing.T) {
	svc, clock := newTestService(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	created, err := svc.Create(ctx, dailySchedule("s"))
	require.NoError(t, err)
	first := *created.NextRun

	clock.Set(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	retitled := *created
	retitled.Title = "Renamed"
	updated, err := svc.Update(ctx, retitled)
	require.NoError(t, err)
	assert.Equal(t, first, *updated.NextRun)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	weekly := *updated
	weekly.Frequency = exports.FrequencyWeekly
	weekly.DayOfWeek = "Monday"
	weekly.TimeOfDay = telemetry.ClockTime{Hour: 7, Minute: 30}
	updated, err = svc.Update(ctx, weekly)
	require.NoError(t, err)
	// 2026-03-10 is a Tuesday
	assert.Equal(t, time.Date(2026, 3, 16, 7, 30, 0, 0, time.UTC), *updated.NextRun)

	_, err = svc.Update(ctx, dailySchedule("unknown"))
	assert.ErrorIs(t, err, exports.ErrScheduleNotFound)
}

func TestGetDeleteAndRuns(t *testing.T) {
	svc, _ := newTestService(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, err := svc.Create(ctx, dailySchedule("s"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, exports.ErrEmptyScheduleID)

	runs, err := svc.Runs(ctx, "s", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, svc.Delete(ctx, "s"))
	_, err = svc.Get(ctx, "s")
	assert.ErrorIs(t, err, exports.ErrScheduleNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "s"), exports.ErrScheduleNotFound)
}

func TestPreviewNextRunHasNoSideEffects(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	clock := newFakeClock(time.Date(2026, 1, 31, 2, 0, 0, 0, time.UTC))
	repo := exmemory.NewScheduleRepository()
	svc, err := NewScheduleService(repo, exmemory.NewRunRepository(), WithServiceClock(clock), WithServiceLocation(loc))
	require.NoError(t, err)

	s := dailySchedule("preview")
	s.Frequency = exports.FrequencyMonthly
	s.DayOfMonth = 31
	next, err := svc.PreviewNextRun(s)
	require.NoError(t, err)
	// Jan 31 09:00 local is not after now; February clamps to the 28th
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, loc), next)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	s.DayOfMonth = 0
	_, err = PreviewNextRun(s, clock.Now())
	assert.Error(t, err)
}

// racingSchedules lets a run finish between Update's read and its write.
type racingSchedules struct {
	*exmemory.ScheduleRepository
	onGet func()
}

func (r *racingSchedules) Get(ctx context.Context, id string) (*exports.ExportSchedule, error) {
	s, err := r.ScheduleRepository.Get(ctx, id)
	if hook := r.onGet; hook != nil {
		r.onGet = nil
		hook()
	}
	return s, err
}

func TestUpdateKeepsConcurrentRunBookkeeping(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	repo := &racingSchedules{ScheduleRepository: exmemory.NewScheduleRepository()}
	svc, err := NewScheduleService(repo, exmemory.NewRunRepository(), WithServiceClock(clock))
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.Create(ctx, dailySchedule("busy"))
	require.NoError(t, err)
	scheduled := *created.NextRun
	following := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	clock.Set(scheduled.Add(5 * time.Minute))
	repo.onGet = func() {
		found, err := repo.ScheduleRepository.MarkRun(ctx, "busy", scheduled, &following)
		require.NoError(t, err)
		require.True(t, found)
	}
	edit := *created
	edit.Title = "Renamed"
	updated, err := svc.Update(ctx, edit)
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 1, updated.RunCount)
	require.NotNil(t, updated.LastRun)
	assert.Equal(t, scheduled, *updated.LastRun)
	require.NotNil(t, updated.NextRun)
	assert.Equal(t, following, *updated.NextRun)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}
