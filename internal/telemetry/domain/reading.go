package telemetry

import (
	"context"
	"time"
)

// ReadingRow is one sample of a physical device. Values only carries columns
// the store actually returned for that instant.
type ReadingRow struct {
	Timestamp time.Time
	DeviceID  string
	Values    map[Column]float64
}

// Value returns the reading for a column and whether it was present.
func (r ReadingRow) Value(column Column) (float64, bool) {
	if r.Values == nil {
		return 0, false
	}
	v, ok := r.Values[column]
	return v, ok
}

// Labels lists the physical columns present on the row in catalog order.
func (r ReadingRow) Labels() []Column {
	labels := make([]Column, 0, len(r.Values))
	for _, column := range KnownColumns() {
		if _, ok := r.Values[column]; ok {
			labels = append(labels, column)
		}
	}
	return labels
}

// Store queries raw readings for physical devices.
type Store interface {
	Query(ctx context.Context, deviceIDs []string, window Window) ([]ReadingRow, error)
}

// Writer appends raw readings.
type Writer interface {
	Insert(ctx context.Context, rows []ReadingRow) error
}
