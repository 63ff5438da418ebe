package apihttp

import (
	"strings"
	"time"

	exports "metering-dashboard/internal/exports/domain"
	reports "metering-dashboard/internal/reports/domain"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

const timeLayout = time.RFC3339

type scheduleRequest struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Frequency           string              `json:"frequency"`
	TimeOfDay           string              `json:"time_of_day"`
	DayOfWeek           string              `json:"day_of_week"`
	DayOfMonth          int                 `json:"day_of_month"`
	ExportFormat        string              `json:"export_format"`
	ReadIntervalMinutes int                 `json:"read_interval_minutes"`
	MeterRefs           []string            `json:"meter_refs"`
	ParameterRefs       []string            `json:"parameter_refs"`
	Window              *exports.WindowSpec `json:"window"`
	Recipients          exports.Recipients  `json:"recipients"`
	IncludeBilling      bool                `json:"include_billing"`
	Enabled             *bool               `json:"enabled"`
}

// toSchedule maps a request onto a schedule. Parse failures are reported as
// scheduling errors so they share the validation response.
func (req scheduleRequest) toSchedule() (exports.ExportSchedule, error) {
	clock, err := telemetry.ParseClockTime(strings.TrimSpace(req.TimeOfDay))
	if err != nil {
		return exports.ExportSchedule{}, &exports.SchedulingError{Field: "time_of_day", Reason: "expected HH:MM"}
	}
	// an empty format is left to schedule validation; previews do not need one
	var format reports.Format
	if strings.TrimSpace(req.ExportFormat) != "" {
		format, err = reports.ParseFormat(req.ExportFormat)
		if err != nil {
			return exports.ExportSchedule{}, &exports.SchedulingError{Field: "export_format", Reason: err.Error()}
		}
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	var window exports.WindowSpec
	if req.Window != nil {
		window = *req.Window
	}
	return exports.ExportSchedule{
		ID:                  strings.TrimSpace(req.ID),
		Title:               strings.TrimSpace(req.Title),
		Frequency:           exports.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency))),
		TimeOfDay:           clock,
		DayOfWeek:           strings.TrimSpace(req.DayOfWeek),
		DayOfMonth:          req.DayOfMonth,
		Format:              format,
		ReadIntervalMinutes: req.ReadIntervalMinutes,
		MeterRefs:           req.MeterRefs,
		ParameterRefs:       req.ParameterRefs,
		Window:              window,
		Recipients:          req.Recipients,
		IncludeBilling:      req.IncludeBilling,
		Enabled:             enabled,
	}, nil
}

type scheduleResponse struct {
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	Frequency           string             `json:"frequency"`
	TimeOfDay           string             `json:"time_of_day"`
	DayOfWeek           string             `json:"day_of_week,omitempty"`
	DayOfMonth          int                `json:"day_of_month,omitempty"`
	ExportFormat        string             `json:"export_format"`
	ReadIntervalMinutes int                `json:"read_interval_minutes"`
	MeterRefs           []string           `json:"meter_refs"`
	ParameterRefs       []string           `json:"parameter_refs"`
	Window              exports.WindowSpec `json:"window"`
	Recipients          exports.Recipients `json:"recipients"`
	IncludeBilling      bool               `json:"include_billing"`
	Enabled             bool               `json:"enabled"`
	LastRun             string             `json:"last_run,omitempty"`
	NextRun             string             `json:"next_run,omitempty"`
	RunCount            int                `json:"run_count"`
	CreatedAt           string             `json:"created_at"`
	UpdatedAt           string             `json:"updated_at"`
}

func toScheduleResponse(s exports.ExportSchedule) scheduleResponse {
	return scheduleResponse{
		ID:                  s.ID,
		Title:               s.Title,
		Frequency:           string(s.Frequency),
		TimeOfDay:           s.TimeOfDay.String(),
		DayOfWeek:           s.DayOfWeek,
		DayOfMonth:          s.DayOfMonth,
		ExportFormat:        string(s.Format),
		ReadIntervalMinutes: s.ReadIntervalMinutes,
		MeterRefs:           s.MeterRefs,
		ParameterRefs:       s.ParameterRefs,
		Window:              s.Window,
		Recipients:          s.Recipients,
		IncludeBilling:      s.IncludeBilling,
		Enabled:             s.Enabled,
		LastRun:             formatTimePtr(s.LastRun),
		NextRun:             formatTimePtr(s.NextRun),
		RunCount:            s.RunCount,
		CreatedAt:           s.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:           s.UpdatedAt.UTC().Format(timeLayout),
	}
}

type runResponse struct {
	ID               string                   `json:"id"`
	ScheduleID       string                   `json:"schedule_id"`
	StartedAt        string                   `json:"started_at"`
	FinishedAt       string                   `json:"finished_at"`
	Status           string                   `json:"status"`
	ArtifactFilename string                   `json:"artifact_filename,omitempty"`
	ArtifactLink     string                   `json:"artifact_link,omitempty"`
	Deliveries       []exports.ChannelOutcome `json:"deliveries"`
	Issues           []exports.Issue          `json:"issues"`
}

func toRunResponse(run exports.RunRecord) runResponse {
	deliveries := run.Deliveries
	if deliveries == nil {
		deliveries = []exports.ChannelOutcome{}
	}
	issues := run.Issues
	if issues == nil {
		issues = []exports.Issue{}
	}
	return runResponse{
		ID:               run.ID,
		ScheduleID:       run.ScheduleID,
		StartedAt:        run.StartedAt.UTC().Format(timeLayout),
		FinishedAt:       run.FinishedAt.UTC().Format(timeLayout),
		Status:           string(run.Status),
		ArtifactFilename: run.ArtifactFilename,
		ArtifactLink:     run.ArtifactLink,
		Deliveries:       deliveries,
		Issues:           issues,
	}
}

type previewResponse struct {
	NextRun string `json:"next_run"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
