package application

import (
	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
	"metering-dashboard/internal/telemetry/normalize"
)

// buildFrame normalizes requested parameters against the labels present in the
// fetched rows and lays rows out per meter, in meter order. With no rows the
// catalog stands in for the labels so matched columns still carry their
// physical name.
func buildFrame(meters []masterdata.MeterDirectoryEntry, rowsByDevice map[string][]telemetry.ReadingRow, parameters []string) reports.Frame {
	labels := presentLabels(rowsByDevice)
	if len(labels) == 0 {
		labels = telemetry.KnownColumns()
	}
	matches := normalize.ResolveAll(labels, parameters)

	frame := reports.Frame{Columns: make([]reports.FrameColumn, 0, len(matches))}
	for _, m := range matches {
		frame.Columns = append(frame.Columns, reports.FrameColumn{Parameter: m.Parameter, Column: m.Column})
	}
	for _, meter := range meters {
		for _, row := range rowsByDevice[meter.DeviceID] {
			cells := make([]reports.Cell, len(matches))
			for i, m := range matches {
				if !m.Matched() {
					continue
				}
				if v, ok := row.Value(m.Column); ok {
					cells[i] = reports.Cell{Value: v, Present: true}
				}
			}
			frame.Rows = append(frame.Rows, reports.FrameRow{
				Timestamp: row.Timestamp,
				MeterRef:  meter.Ref,
				MeterName: meter.DisplayName(),
				DeviceID:  meter.DeviceID,
				Cells:     cells,
			})
		}
	}
	return frame
}

func presentLabels(rowsByDevice map[string][]telemetry.ReadingRow) []telemetry.Column {
	seen := make(map[telemetry.Column]struct{})
	for _, rows := range rowsByDevice {
		for _, row := range rows {
			for column := range row.Values {
				seen[column] = struct{}{}
			}
		}
	}
	labels := make([]telemetry.Column, 0, len(seen))
	for _, column := range telemetry.KnownColumns() {
		if _, ok := seen[column]; ok {
			labels = append(labels, column)
		}
	}
	return labels
}

func groupByDevice(rows []telemetry.ReadingRow) map[string][]telemetry.ReadingRow {
	out := make(map[string][]telemetry.ReadingRow)
	for _, row := range rows {
		out[row.DeviceID] = append(out[row.DeviceID], row)
	}
	return out
}
