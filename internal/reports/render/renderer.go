package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	reports "metering-dashboard/internal/reports/domain"
)

// NoData marks a requested parameter that has no physical column.
const NoData = "no data"

const timestampLayout = "2006-01-02 15:04"

type formatter struct {
	contentType string
	extension   string
	render      func(reports.Frame, reports.Metadata) ([]byte, error)
}

var formatters = map[reports.Format]formatter{
	reports.FormatPDF:   {contentType: "application/pdf", extension: ".pdf", render: renderPDF},
	reports.FormatCSV:   {contentType: "text/csv; charset=utf-8", extension: ".csv", render: renderCSV},
	reports.FormatExcel: {contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", extension: ".xlsx", render: renderExcel},
	reports.FormatImage: {contentType: "image/png", extension: ".png", render: renderImage},
	reports.FormatText:  {contentType: "text/plain; charset=utf-8", extension: ".txt", render: renderText},
}

// Renderer turns a frame into an artifact. Every format reads the same frame.
type Renderer struct{}

// NewRenderer constructs a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces an artifact. Failures are returned as *reports.RenderError.
func (r *Renderer) Render(frame reports.Frame, format reports.Format, meta reports.Metadata) (reports.Artifact, error) {
	f, ok := formatters[format]
	if !ok {
		return reports.Artifact{}, &reports.RenderError{Format: format, Err: reports.ErrUnknownFormat}
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	data, err := safeRender(f.render, frame, meta)
	if err != nil {
		return reports.Artifact{}, &reports.RenderError{Format: format, Err: err}
	}
	return reports.Artifact{
		Data:        data,
		ContentType: f.contentType,
		Filename:    Filename(meta.Title, meta.GeneratedAt, f.extension),
		Format:      format,
	}, nil
}

func safeRender(fn func(reports.Frame, reports.Metadata) ([]byte, error), frame reports.Frame, meta reports.Metadata) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	data, err = fn(frame, meta)
	if err == nil && len(data) == 0 {
		err = errors.New("empty output")
	}
	return data, err
}

var filenameKeywords = []struct {
	keyword string
	base    string
}{
	{"demand graph", "DemandGraph"},
	{"energy graph", "EnergyGraph"},
	{"power factor", "PowerFactor"},
	{"voltage", "Voltage"},
	{"current", "Current"},
	{"billing", "Billing"},
	{"energy", "EnergyReport"},
	{"demand", "DemandReport"},
}

const defaultFilenameBase = "Report"

// Filename derives "<base>_<yyyy-mm-dd><ext>" from the report title.
func Filename(title string, at time.Time, extension string) string {
	return fmt.Sprintf("%s_%s%s", filenameBase(title), at.Format("2006-01-02"), extension)
}

func filenameBase(title string) string {
	lower := strings.ToLower(title)
	for _, k := range filenameKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.base
		}
	}
	return defaultFilenameBase
}

func headerLabels(frame reports.Frame) []string {
	labels := []string{"Timestamp", "Meter", "Device"}
	for _, column := range frame.Columns {
		labels = append(labels, columnLabel(column))
	}
	return labels
}

func columnLabel(column reports.FrameColumn) string {
	if column.Matched() {
		return string(column.Column)
	}
	return column.Parameter
}

func cellText(column reports.FrameColumn, cell reports.Cell) string {
	if !column.Matched() {
		return NoData
	}
	if !cell.Present {
		return ""
	}
	return fmt.Sprintf("%.3f", cell.Value)
}

func rowCells(frame reports.Frame, row reports.FrameRow, loc *time.Location) []string {
	out := []string{row.Timestamp.In(loc).Format(timestampLayout), row.MeterName, row.DeviceID}
	for i, column := range frame.Columns {
		var cell reports.Cell
		if i < len(row.Cells) {
			cell = row.Cells[i]
		}
		out = append(out, cellText(column, cell))
	}
	return out
}

func location(meta reports.Metadata) *time.Location {
	if loc := meta.Window.Start.Location(); loc != nil {
		return loc
	}
	return time.UTC
}

func windowText(meta reports.Metadata) string {
	if meta.Window.Start.IsZero() {
		return ""
	}
	loc := location(meta)
	return fmt.Sprintf("%s to %s", meta.Window.Start.In(loc).Format(timestampLayout), meta.Window.End.In(loc).Format(timestampLayout))
}

func title(meta reports.Metadata) string {
	if strings.TrimSpace(meta.Title) == "" {
		return defaultFilenameBase
	}
	return meta.Title
}

var billingHeader = []string{"Meter", "Energy charge", "Demand charge", "Power factor surcharge", "Subtotal", "FT", "Tax", "Grand total"}

func billingCells(frame reports.Frame) [][]string {
	rows := make([][]string, 0, len(frame.Billing))
	for _, result := range frame.Billing {
		row := []string{result.MeterRef}
		for _, line := range result.Lines() {
			row = append(row, line.Amount)
		}
		rows = append(rows, row)
	}
	return rows
}
