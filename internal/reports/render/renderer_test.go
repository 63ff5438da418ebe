package render

import (
	"bytes"
	"encoding/csv"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	billing "metering-dashboard/internal/billing/domain"
	reports "metering-dashboard/internal/reports/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

func sampleFrame(t *testing.T) (reports.Frame, reports.Metadata) {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	frame := reports.Frame{
		Columns: []reports.FrameColumn{
			{Parameter: "demand_w", Column: telemetry.ColumnDemandW},
			{Parameter: "harmonics", Column: telemetry.Unmatched},
		},
		Rows: []reports.FrameRow{
			{Timestamp: start, MeterRef: "m1", MeterName: "Main", DeviceID: "12", Cells: []reports.Cell{{Value: 10, Present: true}, {}}},
			{Timestamp: start.Add(15 * time.Minute), MeterRef: "m1", MeterName: "Main", DeviceID: "12", Cells: []reports.Cell{{Value: 12.5, Present: true}, {}}},
		},
	}
	calc, err := billing.NewCalculator(billing.DefaultRates())
	require.NoError(t, err)
	result, err := calc.Calculate(billing.Usage{MeterRef: "m1", MaxDemandW: 100, OnPeakKWh: 50, OffPeakKWh: 30})
	require.NoError(t, err)
	frame.Billing = []billing.Result{result}

	meta := reports.Metadata{
		Title:       "Monthly Demand Graph",
		MeterNames:  []string{"Main"},
		Window:      telemetry.Window{Start: start, End: start.Add(time.Hour)},
		GeneratedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	return frame, meta
}

func TestFilenameByKeyword(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"Monthly Demand Graph":  "DemandGraph_2026-03-02.pdf",
		"energy graph (site A)": "EnergyGraph_2026-03-02.pdf",
		"Billing summary":       "Billing_2026-03-02.pdf",
		"Weekly export":         "Report_2026-03-02.pdf",
		"":                      "Report_2026-03-02.pdf",
	}
	for title, want := range cases {
		assert.Equal(t, want, Filename(title, at, ".pdf"), title)
	}
}

func TestRenderCSVKeepsUnmatchedColumn(t *testing.T) {
	frame, meta := sampleFrame(t)
	artifact, err := NewRenderer().Render(frame, reports.FormatCSV, meta)
	require.NoError(t, err)
	assert.Equal(t, "DemandGraph_2026-03-02.csv", artifact.Filename)
	assert.True(t, strings.HasPrefix(artifact.ContentType, "text/csv"))

	r := csv.NewReader(bytes.NewReader(artifact.Data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Timestamp", "Meter", "Device", "Demand W", "harmonics"}, records[0])
	assert.Equal(t, []string{"2026-03-01 00:00", "Main", "12", "10.000", NoData}, records[1])
	assert.Equal(t, billingHeader, records[3])
	assert.Equal(t, "287.31", records[4][1])
}

func TestRenderExcelSheets(t *testing.T) {
	frame, meta := sampleFrame(t)
	artifact, err := NewRenderer().Render(frame, reports.FormatExcel, meta)
	require.NoError(t, err)
	assert.Equal(t, "DemandGraph_2026-03-02.xlsx", artifact.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(dataSheet, "E1")
	require.NoError(t, err)
	assert.Equal(t, "harmonics", header)
	marker, err := f.GetCellValue(dataSheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, NoData, marker)
	total, err := f.GetCellValue(billingSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "287.31", total)
}

func TestRenderPDFAndImage(t *testing.T) {
	frame, meta := sampleFrame(t)
	renderer := NewRenderer()

	pdf, err := renderer.Render(frame, reports.FormatPDF, meta)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))
	assert.Equal(t, "application/pdf", pdf.ContentType)

	img, err := renderer.Render(frame, reports.FormatImage, meta)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, chartWidth, decoded.Bounds().Dx())
	assert.Equal(t, "DemandGraph_2026-03-02.png", img.Filename)
}

func TestRenderTextAndEmptyFrame(t *testing.T) {
	frame, meta := sampleFrame(t)
	artifact, err := NewRenderer().Render(frame, reports.FormatText, meta)
	require.NoError(t, err)
	text := string(artifact.Data)
	assert.Contains(t, text, "Monthly Demand Graph")
	assert.Contains(t, text, NoData)
	assert.Contains(t, text, "Billing")

	for _, format := range []reports.Format{reports.FormatPDF, reports.FormatCSV, reports.FormatExcel, reports.FormatImage, reports.FormatText} {
		empty, err := NewRenderer().Render(reports.Frame{}, format, meta)
		require.NoError(t, err, format)
		assert.NotEmpty(t, empty.Data, format)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	frame, meta := sampleFrame(t)
	_, err := NewRenderer().Render(frame, reports.Format("docx"), meta)
	var renderErr *reports.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.True(t, errors.Is(err, reports.ErrUnknownFormat))
}
