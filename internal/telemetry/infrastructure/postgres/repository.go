package postgres

import (
	"context"
	"errors"
	"fmt"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

// Insert upserts readings, one narrow row per column.
func (q *ReadingQuery) Insert(ctx context.Context, rows []telemetry.ReadingRow) error {
	if q == nil || q.db == nil {
		return errors.New("reading query: nil db")
	}
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	slave_id,
	ts,
	label,
	value
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (slave_id, ts, label)
DO UPDATE SET
	value = EXCLUDED.value`, q.table)

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if row.DeviceID == "" || row.Timestamp.IsZero() {
			_ = tx.Rollback()
			return errors.New("reading query: invalid reading row")
		}
		for _, column := range row.Labels() {
			if _, err := stmt.ExecContext(ctx, row.DeviceID, row.Timestamp.UTC(), string(column), row.Values[column]); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}
