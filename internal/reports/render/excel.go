package render

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	reports "metering-dashboard/internal/reports/domain"
)

const (
	dataSheet    = "data"
	billingSheet = "billing"
)

func renderExcel(frame reports.Frame, meta reports.Metadata) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return nil, err
	}

	if err := setRow(f, dataSheet, 1, toAny(headerLabels(frame))); err != nil {
		return nil, err
	}
	loc := location(meta)
	for i, row := range frame.Rows {
		values := []any{row.Timestamp.In(loc).Format(timestampLayout), row.MeterName, row.DeviceID}
		for j, column := range frame.Columns {
			var cell reports.Cell
			if j < len(row.Cells) {
				cell = row.Cells[j]
			}
			switch {
			case !column.Matched():
				values = append(values, NoData)
			case cell.Present:
				values = append(values, cell.Value)
			default:
				values = append(values, nil)
			}
		}
		if err := setRow(f, dataSheet, i+2, values); err != nil {
			return nil, err
		}
	}

	if len(frame.Billing) > 0 {
		if _, err := f.NewSheet(billingSheet); err != nil {
			return nil, err
		}
		if err := setRow(f, billingSheet, 1, toAny(billingHeader)); err != nil {
			return nil, err
		}
		for i, cells := range billingCells(frame) {
			if err := setRow(f, billingSheet, i+2, toAny(cells)); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
