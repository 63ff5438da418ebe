package render

import (
	"bytes"
	"encoding/csv"

	reports "metering-dashboard/internal/reports/domain"
)

func renderCSV(frame reports.Frame, meta reports.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	loc := location(meta)

	if err := w.Write(headerLabels(frame)); err != nil {
		return nil, err
	}
	for _, row := range frame.Rows {
		if err := w.Write(rowCells(frame, row, loc)); err != nil {
			return nil, err
		}
	}
	if len(frame.Billing) > 0 {
		if err := w.Write(nil); err != nil {
			return nil, err
		}
		if err := w.Write(billingHeader); err != nil {
			return nil, err
		}
		if err := w.WriteAll(billingCells(frame)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
