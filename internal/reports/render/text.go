package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	reports "metering-dashboard/internal/reports/domain"
)

func renderText(frame reports.Frame, meta reports.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, title(meta))
	if len(meta.MeterNames) > 0 {
		fmt.Fprintf(&buf, "Meters: %s\n", strings.Join(meta.MeterNames, ", "))
	}
	if window := windowText(meta); window != "" {
		fmt.Fprintf(&buf, "Window: %s\n", window)
	}
	buf.WriteString("\n")

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headerLabels(frame), "\t"))
	loc := location(meta)
	for _, row := range frame.Rows {
		fmt.Fprintln(tw, strings.Join(rowCells(frame, row, loc), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}

	if len(frame.Billing) > 0 {
		buf.WriteString("\nBilling\n")
		tw = tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, strings.Join(billingHeader, "\t")+"\t")
		for _, cells := range billingCells(frame) {
			fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		}
		if err := tw.Flush(); err != nil {
			return nil, err
		}
	}
	if len(frame.Rows) == 0 {
		buf.WriteString("\nNo readings in window.\n")
	}
	return buf.Bytes(), nil
}
