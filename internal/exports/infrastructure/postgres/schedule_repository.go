package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	exports "metering-dashboard/internal/exports/domain"
	reports "metering-dashboard/internal/reports/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

const defaultSchedulesTable = "export_schedules"

const scheduleColumns = `id, title, frequency, time_of_day, COALESCE(day_of_week, ''), COALESCE(day_of_month, 0),
	export_format, read_interval_minutes, meter_refs, parameter_refs, data_window, recipients,
	include_billing, enabled, last_run, next_run, run_count, created_at, updated_at`

// ScheduleRepository is a Postgres implementation of exports.ScheduleRepository.
type ScheduleRepository struct {
	db    DBTX
	table string
}

// NewScheduleRepository constructs a repository with default table name.
func NewScheduleRepository(db DBTX, opts ...ScheduleRepositoryOption) *ScheduleRepository {
	repo := &ScheduleRepository{db: db, table: defaultSchedulesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ScheduleRepositoryOption configures the repository.
type ScheduleRepositoryOption func(*ScheduleRepository)

// WithSchedulesTable overrides the default table name.
func WithSchedulesTable(table string) ScheduleRepositoryOption {
	return func(repo *ScheduleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a schedule by id. Soft-deleted schedules are not returned.
func (r *ScheduleRepository) Get(ctx context.Context, id string) (*exports.ExportSchedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("schedule repository: nil db")
	}
	if id == "" {
		return nil, exports.ErrEmptyScheduleID
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`, scheduleColumns, r.table)

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return schedule, nil
}

// List loads every live schedule ordered by creation.
func (r *ScheduleRepository) List(ctx context.Context) ([]exports.ExportSchedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("schedule repository: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE deleted_at IS NULL
ORDER BY created_at ASC, id ASC`, scheduleColumns, r.table)
	return r.list(ctx, query)
}

// ListDue loads enabled schedules whose next run is at or before now.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]exports.ExportSchedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("schedule repository: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE enabled AND deleted_at IS NULL AND next_run IS NOT NULL AND next_run <= $1
ORDER BY next_run ASC, id ASC`, scheduleColumns, r.table)
	return r.list(ctx, query, now.UTC())
}

// Save upserts a schedule and clears any soft delete.
func (r *ScheduleRepository) Save(ctx context.Context, schedule *exports.ExportSchedule) error {
	if r == nil || r.db == nil {
		return errors.New("schedule repository: nil db")
	}
	if schedule == nil {
		return exports.ErrNilSchedule
	}
	if schedule.ID == "" {
		return exports.ErrEmptyScheduleID
	}
	cols, err := marshalConfig(schedule)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, title, frequency, time_of_day, day_of_week, day_of_month,
	export_format, read_interval_minutes, meter_refs, parameter_refs, data_window, recipients,
	include_billing, enabled, last_run, next_run, run_count, created_at, updated_at, deleted_at
) VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,0),$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NULL)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	frequency = EXCLUDED.frequency,
	time_of_day = EXCLUDED.time_of_day,
	day_of_week = EXCLUDED.day_of_week,
	day_of_month = EXCLUDED.day_of_month,
	export_format = EXCLUDED.export_format,
	read_interval_minutes = EXCLUDED.read_interval_minutes,
	meter_refs = EXCLUDED.meter_refs,
	parameter_refs = EXCLUDED.parameter_refs,
	data_window = EXCLUDED.data_window,
	recipients = EXCLUDED.recipients,
	include_billing = EXCLUDED.include_billing,
	enabled = EXCLUDED.enabled,
	last_run = EXCLUDED.last_run,
	next_run = EXCLUDED.next_run,
	run_count = EXCLUDED.run_count,
	updated_at = EXCLUDED.updated_at,
	deleted_at = NULL`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.Title,
		string(schedule.Frequency),
		schedule.TimeOfDay.String(),
		schedule.DayOfWeek,
		schedule.DayOfMonth,
		string(schedule.Format),
		schedule.ReadIntervalMinutes,
		cols.meterRefs,
		cols.parameterRefs,
		cols.window,
		cols.recipients,
		schedule.IncludeBilling,
		schedule.Enabled,
		nullTime(schedule.LastRun),
		nullTime(schedule.NextRun),
		schedule.RunCount,
		schedule.CreatedAt.UTC(),
		schedule.UpdatedAt.UTC(),
	)
	return err
}

// UpdateConfig rewrites the configuration of a live schedule without
// touching last_run or run_count, so a concurrent MarkRun is never undone.
func (r *ScheduleRepository) UpdateConfig(ctx context.Context, schedule *exports.ExportSchedule, nextRun *time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("schedule repository: nil db")
	}
	if schedule == nil {
		return false, exports.ErrNilSchedule
	}
	if schedule.ID == "" {
		return false, exports.ErrEmptyScheduleID
	}
	cols, err := marshalConfig(schedule)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	title = $2,
	frequency = $3,
	time_of_day = $4,
	day_of_week = NULLIF($5,''),
	day_of_month = NULLIF($6,0),
	export_format = $7,
	read_interval_minutes = $8,
	meter_refs = $9,
	parameter_refs = $10,
	data_window = $11,
	recipients = $12,
	include_billing = $13,
	enabled = $14,
	next_run = COALESCE($15, next_run),
	updated_at = $16
WHERE id = $1 AND deleted_at IS NULL`, r.table)

	res, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.Title,
		string(schedule.Frequency),
		schedule.TimeOfDay.String(),
		schedule.DayOfWeek,
		schedule.DayOfMonth,
		string(schedule.Format),
		schedule.ReadIntervalMinutes,
		cols.meterRefs,
		cols.parameterRefs,
		cols.window,
		cols.recipients,
		schedule.IncludeBilling,
		schedule.Enabled,
		nullTime(nextRun),
		schedule.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Delete soft-deletes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("schedule repository: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s SET deleted_at = $2, enabled = FALSE, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL`, r.table)
	res, err := r.db.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return exports.ErrScheduleNotFound
	}
	return nil
}

// MarkRun records an execution in a single statement that leaves the
// configuration columns alone. Together with UpdateConfig neither writer
// overwrites the other.
func (r *ScheduleRepository) MarkRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("schedule repository: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	last_run = $2,
	next_run = COALESCE($3, next_run),
	run_count = run_count + 1
WHERE id = $1 AND deleted_at IS NULL`, r.table)
	res, err := r.db.ExecContext(ctx, query, id, lastRun.UTC(), nullTime(nextRun))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]exports.ExportSchedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []exports.ExportSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanSchedule(row scanner) (*exports.ExportSchedule, error) {
	var (
		schedule      exports.ExportSchedule
		frequency     string
		timeOfDay     string
		format        string
		meterRefs     []byte
		parameterRefs []byte
		window        []byte
		recipients    []byte
		lastRun       sql.NullTime
		nextRun       sql.NullTime
	)
	if err := row.Scan(
		&schedule.ID,
		&schedule.Title,
		&frequency,
		&timeOfDay,
		&schedule.DayOfWeek,
		&schedule.DayOfMonth,
		&format,
		&schedule.ReadIntervalMinutes,
		&meterRefs,
		&parameterRefs,
		&window,
		&recipients,
		&schedule.IncludeBilling,
		&schedule.Enabled,
		&lastRun,
		&nextRun,
		&schedule.RunCount,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	clock, err := telemetry.ParseClockTime(timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("schedule repository: %s: %w", schedule.ID, err)
	}
	schedule.Frequency = exports.Frequency(frequency)
	schedule.TimeOfDay = clock
	schedule.Format = reports.Format(format)
	if err := decodeJSON(meterRefs, &schedule.MeterRefs); err != nil {
		return nil, fmt.Errorf("schedule repository: %s meter_refs: %w", schedule.ID, err)
	}
	if err := decodeJSON(parameterRefs, &schedule.ParameterRefs); err != nil {
		return nil, fmt.Errorf("schedule repository: %s parameter_refs: %w", schedule.ID, err)
	}
	if err := decodeJSON(window, &schedule.Window); err != nil {
		return nil, fmt.Errorf("schedule repository: %s data_window: %w", schedule.ID, err)
	}
	if err := decodeJSON(recipients, &schedule.Recipients); err != nil {
		return nil, fmt.Errorf("schedule repository: %s recipients: %w", schedule.ID, err)
	}
	schedule.LastRun = timePtr(lastRun)
	schedule.NextRun = timePtr(nextRun)
	schedule.CreatedAt = schedule.CreatedAt.UTC()
	schedule.UpdatedAt = schedule.UpdatedAt.UTC()
	return &schedule, nil
}

func decodeJSON(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type configColumns struct {
	meterRefs     []byte
	parameterRefs []byte
	window        []byte
	recipients    []byte
}

func marshalConfig(schedule *exports.ExportSchedule) (configColumns, error) {
	var cols configColumns
	var err error
	if cols.meterRefs, err = json.Marshal(nonNil(schedule.MeterRefs)); err != nil {
		return cols, err
	}
	if cols.parameterRefs, err = json.Marshal(nonNil(schedule.ParameterRefs)); err != nil {
		return cols, err
	}
	if cols.window, err = json.Marshal(schedule.Window); err != nil {
		return cols, err
	}
	if cols.recipients, err = json.Marshal(schedule.Recipients); err != nil {
		return cols, err
	}
	return cols, nil
}
