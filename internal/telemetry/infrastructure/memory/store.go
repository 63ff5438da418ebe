package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

// Store is an in-memory reading store. Rows written for the same device and
// instant are merged column by column.
type Store struct {
	mu   sync.RWMutex
	rows map[string][]telemetry.ReadingRow
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{rows: make(map[string][]telemetry.ReadingRow)}
}

// Insert implements telemetry.Writer.
func (s *Store) Insert(ctx context.Context, rows []telemetry.ReadingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if row.DeviceID == "" || row.Timestamp.IsZero() {
			return errors.New("memory telemetry: row needs device id and timestamp")
		}
		existing := s.rows[row.DeviceID]
		idx := sort.Search(len(existing), func(i int) bool {
			return !existing[i].Timestamp.Before(row.Timestamp)
		})
		if idx < len(existing) && existing[idx].Timestamp.Equal(row.Timestamp) {
			for column, value := range row.Values {
				existing[idx].Values[column] = value
			}
			continue
		}
		values := make(map[telemetry.Column]float64, len(row.Values))
		for column, value := range row.Values {
			values[column] = value
		}
		existing = append(existing, telemetry.ReadingRow{})
		copy(existing[idx+1:], existing[idx:])
		existing[idx] = telemetry.ReadingRow{Timestamp: row.Timestamp.UTC(), DeviceID: row.DeviceID, Values: values}
		s.rows[row.DeviceID] = existing
	}
	return nil
}

// Query implements telemetry.Store.
func (s *Store) Query(ctx context.Context, deviceIDs []string, window telemetry.Window) ([]telemetry.ReadingRow, error) {
	if len(deviceIDs) == 0 {
		return nil, errors.New("memory telemetry: no device ids")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	ids := append([]string(nil), deviceIDs...)
	sort.Strings(ids)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []telemetry.ReadingRow
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		for _, row := range s.rows[id] {
			if !window.Contains(row.Timestamp) {
				continue
			}
			values := make(map[telemetry.Column]float64, len(row.Values))
			for column, value := range row.Values {
				values[column] = value
			}
			out = append(out, telemetry.ReadingRow{Timestamp: row.Timestamp, DeviceID: row.DeviceID, Values: values})
		}
	}
	return out, nil
}
