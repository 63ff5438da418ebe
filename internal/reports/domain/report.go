package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	billing "metering-dashboard/internal/billing/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

// Format is an artifact format.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatImage Format = "image"
	FormatText  Format = "text"
)

// ErrUnknownFormat is returned for formats outside the supported set.
var ErrUnknownFormat = errors.New("reports: unknown format")

// ParseFormat normalizes a format name.
func ParseFormat(value string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(value)))
	switch format {
	case FormatPDF, FormatCSV, FormatExcel, FormatImage, FormatText:
		return format, nil
	case "xlsx":
		return FormatExcel, nil
	case "png":
		return FormatImage, nil
	case "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
}

// Valid reports whether the format is supported.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatCSV, FormatExcel, FormatImage, FormatText:
		return true
	}
	return false
}

// FrameColumn is one requested parameter. Unmatched columns carry no physical
// label and render as a "no data" marker.
type FrameColumn struct {
	Parameter string
	Column    telemetry.Column
}

// Matched reports whether the parameter resolved to a physical column.
func (c FrameColumn) Matched() bool {
	return c.Column != telemetry.Unmatched
}

// Cell is an optional numeric value.
type Cell struct {
	Value   float64
	Present bool
}

// FrameRow is one sample of one meter.
type FrameRow struct {
	Timestamp time.Time
	MeterRef  string
	MeterName string
	DeviceID  string
	Cells     []Cell
}

// Frame is the resolved, normalized data every format renders from.
type Frame struct {
	Columns []FrameColumn
	Rows    []FrameRow
	Billing []billing.Result
}

// Metadata describes a report.
type Metadata struct {
	Title       string
	MeterNames  []string
	Window      telemetry.Window
	GeneratedAt time.Time
}

// Artifact is a rendered report payload.
type Artifact struct {
	Data        []byte
	ContentType string
	Filename    string
	Format      Format
}

// Size returns the payload length.
func (a Artifact) Size() int {
	return len(a.Data)
}

// RenderError reports a failed render. It is fatal to the run.
type RenderError struct {
	Format Format
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("reports: render %s: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
