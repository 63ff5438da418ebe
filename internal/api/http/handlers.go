package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"metering-dashboard/internal/audit"
	"metering-dashboard/internal/auth"
	exportsapp "metering-dashboard/internal/exports/application"
	exports "metering-dashboard/internal/exports/domain"
)

const (
	schedulesPath = "/api/v1/export-schedules"
	maxBodyBytes  = 1 << 20
)

// ScheduleHandler serves the export schedule configuration API.
type ScheduleHandler struct {
	service     *exportsapp.ScheduleService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(service *exportsapp.ScheduleService, auditLogger audit.Logger, logger *zap.Logger) (*ScheduleHandler, error) {
	if service == nil {
		return nil, errors.New("schedule handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// Register mounts the handler on mux.
func (h *ScheduleHandler) Register(mux *http.ServeMux) {
	mux.Handle(schedulesPath, h)
	mux.Handle(schedulesPath+"/", h)
}

// ServeHTTP routes schedule requests.
func (h *ScheduleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, schedulesPath), "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) == 1 && parts[0] == "preview" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePreview(w, r)
		return
	}

	id := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.handleUpdate(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case len(parts) == 2 && parts[1] == "runs" && r.Method == http.MethodGet:
		h.handleRuns(w, r, id)
	case len(parts) == 2 && parts[1] == "enable" && r.Method == http.MethodPost:
		h.handleSetEnabled(w, r, id, true)
	case len(parts) == 2 && parts[1] == "disable" && r.Method == http.MethodPost:
		h.handleSetEnabled(w, r, id, false)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ScheduleHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]scheduleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toScheduleResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScheduleHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), schedule)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleResponse(*created))
	h.logAudit(r, created.ID, "export_schedule.create", toScheduleResponse(*created))
}

func (h *ScheduleHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	schedule, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(*schedule))
}

func (h *ScheduleHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	schedule, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	if schedule.ID != "" && schedule.ID != id {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id does not match path", Field: "id"})
		return
	}
	schedule.ID = id
	updated, err := h.service.Update(r.Context(), schedule)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(*updated))
	h.logAudit(r, id, "export_schedule.update", toScheduleResponse(*updated))
}

func (h *ScheduleHandler) handleSetEnabled(w http.ResponseWriter, r *http.Request, id string, enabled bool) {
	updated, err := h.service.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(*updated))
	h.logAudit(r, id, "export_schedule.enabled.set", map[string]any{"enabled": enabled})
}

func (h *ScheduleHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, "export_schedule.delete", nil)
}

func (h *ScheduleHandler) handleRuns(w http.ResponseWriter, r *http.Request, id string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer", Field: "limit"})
			return
		}
		limit = parsed
	}
	runs, err := h.service.Runs(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePreview computes the next run of an unsaved schedule. Only the
// recurrence fields are checked.
func (h *ScheduleHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	next, err := h.service.PreviewNextRun(schedule)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{NextRun: next.Format(timeLayout)})
}

func (h *ScheduleHandler) decodeSchedule(w http.ResponseWriter, r *http.Request) (exports.ExportSchedule, bool) {
	var req scheduleRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return exports.ExportSchedule{}, false
	}
	schedule, err := req.toSchedule()
	if err != nil {
		h.respondError(w, err)
		return exports.ExportSchedule{}, false
	}
	return schedule, true
}

func (h *ScheduleHandler) respondError(w http.ResponseWriter, err error) {
	var schedErr *exports.SchedulingError
	switch {
	case errors.As(err, &schedErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: schedErr.Reason, Field: schedErr.Field})
	case errors.Is(err, exports.ErrScheduleNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "schedule not found"})
	case errors.Is(err, exports.ErrEmptyScheduleID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "schedule id is required", Field: "id"})
	default:
		h.logger.Error("schedule api error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *ScheduleHandler) logAudit(r *http.Request, id, action string, meta any) {
	if h.auditLogger == nil {
		return
	}
	var payload []byte
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "export_schedule",
		ResourceID:   id,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
