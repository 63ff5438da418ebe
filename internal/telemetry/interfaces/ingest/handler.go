package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

const maxIngestBytes = 4 << 20

// Handler accepts raw meter readings pushed by field gateways.
type Handler struct {
	writer telemetry.Writer
	logger *zap.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(writer telemetry.Writer, logger *zap.Logger) (*Handler, error) {
	if writer == nil {
		return nil, errors.New("telemetry ingest: nil writer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{writer: writer, logger: logger}, nil
}

// ServeHTTP ingests readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	if err != nil {
		h.logger.Warn("telemetry ingest: read body", zap.Error(err))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("telemetry ingest: decode", zap.Error(err))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	rows, err := req.toRows()
	if err != nil {
		h.logger.Warn("telemetry ingest: invalid payload", zap.Error(err))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.writer.Insert(r.Context(), rows); err != nil {
		h.logger.Error("telemetry ingest: insert", zap.Error(err))
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"inserted": len(rows)})
}

type ingestRequest struct {
	DeviceID string             `json:"deviceId"`
	TS       int64              `json:"ts"`
	Values   map[string]float64 `json:"values"`
	Points   []ingestPoint      `json:"points"`
}

type ingestPoint struct {
	TS     int64              `json:"ts"`
	Values map[string]float64 `json:"values"`
}

func (r ingestRequest) toRows() ([]telemetry.ReadingRow, error) {
	if r.DeviceID == "" {
		return nil, errors.New("missing deviceId")
	}

	points := r.Points
	if len(points) == 0 && r.TS != 0 {
		points = []ingestPoint{{TS: r.TS, Values: r.Values}}
	}
	if len(points) == 0 {
		return nil, errors.New("no telemetry points")
	}

	rows := make([]telemetry.ReadingRow, 0, len(points))
	for _, point := range points {
		ts, err := parseTimestamp(point.TS)
		if err != nil {
			return nil, err
		}
		values := make(map[telemetry.Column]float64, len(point.Values))
		for label, value := range point.Values {
			column := telemetry.Column(label)
			if !column.IsKnown() {
				return nil, fmt.Errorf("unknown column %q", label)
			}
			values[column] = value
		}
		if len(values) == 0 {
			return nil, errors.New("empty values")
		}
		rows = append(rows, telemetry.ReadingRow{Timestamp: ts, DeviceID: r.DeviceID, Values: values})
	}
	return rows, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}
