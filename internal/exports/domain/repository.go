package exports

import (
	"context"
	"time"
)

// ScheduleRepository persists export schedules.
type ScheduleRepository interface {
	// Get returns nil, nil when the schedule does not exist or is deleted.
	Get(ctx context.Context, id string) (*ExportSchedule, error)
	List(ctx context.Context) ([]ExportSchedule, error)
	// Save inserts or fully replaces a schedule, bookkeeping fields included.
	Save(ctx context.Context, schedule *ExportSchedule) error
	// UpdateConfig writes the configuration columns and enabled flag only.
	// Last run and run count are never touched; next run is replaced only when
	// nextRun is non-nil. It reports false when the schedule is gone.
	UpdateConfig(ctx context.Context, schedule *ExportSchedule, nextRun *time.Time) (bool, error)
	Delete(ctx context.Context, id string, at time.Time) error
	// ListDue returns enabled schedules with next run at or before now,
	// ascending by next run.
	ListDue(ctx context.Context, now time.Time) ([]ExportSchedule, error)
	// MarkRun records an execution: last run, run count + 1, and next run
	// when nextRun is non-nil. It reports false when the schedule is gone.
	MarkRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) (bool, error)
}

// RunRepository persists run history.
type RunRepository interface {
	Save(ctx context.Context, run RunRecord) error
	// ListBySchedule returns the newest runs first.
	ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]RunRecord, error)
}
