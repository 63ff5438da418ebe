package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

const defaultReadingsTable = "meter_readings"

// ReadingQuery is a Postgres implementation of telemetry.Store. Readings are
// stored narrow, one row per (slave_id, ts, label).
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query with default table name.
func NewReadingQuery(db *sql.DB, opts ...QueryOption) *ReadingQuery {
	query := &ReadingQuery{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the reading query.
type QueryOption func(*ReadingQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *ReadingQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

type rowKey struct {
	deviceID string
	ts       time.Time
}

// Query returns readings for the devices within [window.Start, window.End],
// grouped into one row per device and timestamp, ordered by device then time.
// Labels outside the column catalog are ignored.
func (q *ReadingQuery) Query(ctx context.Context, deviceIDs []string, window telemetry.Window) ([]telemetry.ReadingRow, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	if len(deviceIDs) == 0 {
		return nil, errors.New("reading query: no device ids")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	args := make([]any, 0, len(deviceIDs)+2)
	args = append(args, window.Start, window.End)
	placeholders := make([]string, 0, len(deviceIDs))
	for i, id := range deviceIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		args = append(args, id)
	}

	query := fmt.Sprintf(`
SELECT slave_id, ts, label, value
FROM %s
WHERE ts >= $1
	AND ts <= $2
	AND slave_id IN (%s)
ORDER BY slave_id ASC, ts ASC`, q.table, strings.Join(placeholders, ", "))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byKey := make(map[rowKey]map[telemetry.Column]float64)
	order := make([]rowKey, 0)

	for rows.Next() {
		var deviceID string
		var ts time.Time
		var label string
		var value sql.NullFloat64
		if err := rows.Scan(&deviceID, &ts, &label, &value); err != nil {
			return nil, err
		}
		column := telemetry.Column(label)
		if !value.Valid || !column.IsKnown() {
			continue
		}
		key := rowKey{deviceID: deviceID, ts: ts}
		values := byKey[key]
		if values == nil {
			values = make(map[telemetry.Column]float64)
			byKey[key] = values
			order = append(order, key)
		}
		values[column] = value.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].deviceID != order[j].deviceID {
			return order[i].deviceID < order[j].deviceID
		}
		return order[i].ts.Before(order[j].ts)
	})
	result := make([]telemetry.ReadingRow, 0, len(order))
	for _, key := range order {
		result = append(result, telemetry.ReadingRow{Timestamp: key.ts, DeviceID: key.deviceID, Values: byKey[key]})
	}
	return result, nil
}
