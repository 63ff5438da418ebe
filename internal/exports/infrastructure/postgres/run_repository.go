package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	exports "metering-dashboard/internal/exports/domain"
)

const defaultRunsTable = "export_runs"

// RunRepository is a Postgres implementation of exports.RunRepository.
type RunRepository struct {
	db    DBTX
	table string
}

// NewRunRepository constructs a repository with default table name.
func NewRunRepository(db DBTX, opts ...RunRepositoryOption) *RunRepository {
	repo := &RunRepository{db: db, table: defaultRunsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RunRepositoryOption configures the repository.
type RunRepositoryOption func(*RunRepository)

// WithRunsTable overrides the default table name.
func WithRunsTable(table string) RunRepositoryOption {
	return func(repo *RunRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Save inserts a run record. Records are immutable.
func (r *RunRepository) Save(ctx context.Context, run exports.RunRecord) error {
	if r == nil || r.db == nil {
		return errors.New("run repository: nil db")
	}
	if run.ScheduleID == "" {
		return exports.ErrEmptyScheduleID
	}
	deliveries, err := json.Marshal(run.Deliveries)
	if err != nil {
		return err
	}
	issues, err := json.Marshal(run.Issues)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, schedule_id, started_at, finished_at, status, artifact_filename, artifact_link, deliveries, issues)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING`, r.table)
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.ScheduleID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		string(run.Status),
		run.ArtifactFilename,
		run.ArtifactLink,
		deliveries,
		issues,
	)
	return err
}

// ListBySchedule loads the newest runs of a schedule.
func (r *RunRepository) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]exports.RunRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("run repository: nil db")
	}
	if scheduleID == "" {
		return nil, exports.ErrEmptyScheduleID
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, schedule_id, started_at, finished_at, status,
	COALESCE(artifact_filename, ''), COALESCE(artifact_link, ''), deliveries, issues
FROM %s
WHERE schedule_id = $1
ORDER BY started_at DESC
LIMIT $2`, r.table)

	rows, err := r.db.QueryContext(ctx, query, scheduleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []exports.RunRecord
	for rows.Next() {
		var (
			run        exports.RunRecord
			status     string
			deliveries []byte
			issues     []byte
		)
		if err := rows.Scan(
			&run.ID,
			&run.ScheduleID,
			&run.StartedAt,
			&run.FinishedAt,
			&status,
			&run.ArtifactFilename,
			&run.ArtifactLink,
			&deliveries,
			&issues,
		); err != nil {
			return nil, err
		}
		run.Status = exports.RunStatus(status)
		if err := decodeJSON(deliveries, &run.Deliveries); err != nil {
			return nil, fmt.Errorf("run repository: %s deliveries: %w", run.ID, err)
		}
		if err := decodeJSON(issues, &run.Issues); err != nil {
			return nil, fmt.Errorf("run repository: %s issues: %w", run.ID, err)
		}
		run.StartedAt = run.StartedAt.UTC()
		run.FinishedAt = run.FinishedAt.UTC()
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
