package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	reports "metering-dashboard/internal/reports/domain"
)

const (
	pdfMargin         = 10.0
	pdfTimestampWidth = 32.0
	pdfMeterWidth     = 30.0
	pdfDeviceWidth    = 16.0
	pdfRowHeight      = 5.0
)

func renderPDF(frame reports.Frame, meta reports.Metadata) ([]byte, error) {
	orientation := "P"
	if len(frame.Columns) > 4 {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, title(meta))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	if len(meta.MeterNames) > 0 {
		pdf.Cell(0, 5, fmt.Sprintf("Meters: %s", strings.Join(meta.MeterNames, ", ")))
		pdf.Ln(5)
	}
	if window := windowText(meta); window != "" {
		pdf.Cell(0, 5, fmt.Sprintf("Window: %s", window))
		pdf.Ln(5)
	}
	pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", meta.GeneratedAt.In(location(meta)).Format(timestampLayout)))
	pdf.Ln(8)

	pageWidth, _ := pdf.GetPageSize()
	fixed := pdfTimestampWidth + pdfMeterWidth + pdfDeviceWidth
	valueWidth := 20.0
	if n := len(frame.Columns); n > 0 {
		valueWidth = (pageWidth - 2*pdfMargin - fixed) / float64(n)
	}
	widths := []float64{pdfTimestampWidth, pdfMeterWidth, pdfDeviceWidth}
	for range frame.Columns {
		widths = append(widths, valueWidth)
	}

	header := headerLabels(frame)
	writeHeader := func() {
		pdf.SetFont("Arial", "B", 7)
		for i, label := range header {
			pdf.CellFormat(widths[i], pdfRowHeight+1, label, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 7)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	loc := location(meta)
	for _, row := range frame.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin {
			pdf.AddPage()
			writeHeader()
		}
		for i, text := range rowCells(frame, row, loc) {
			align := "R"
			if i < 3 {
				align = "L"
			}
			pdf.CellFormat(widths[i], pdfRowHeight, text, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(frame.Rows) == 0 {
		pdf.Cell(0, 6, "No readings in window.")
		pdf.Ln(6)
	}

	if len(frame.Billing) > 0 {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Billing")
		pdf.Ln(10)
		width := (pageWidth - 2*pdfMargin) / float64(len(billingHeader))
		pdf.SetFont("Arial", "B", 8)
		for _, label := range billingHeader {
			pdf.CellFormat(width, 6, label, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, cells := range billingCells(frame) {
			for i, text := range cells {
				align := "R"
				if i == 0 {
					align = "L"
				}
				pdf.CellFormat(width, 6, text, "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
