package memory

import (
	"context"
	"sort"
	"sync"

	exports "metering-dashboard/internal/exports/domain"
)

// RunRepository is an in-memory run history.
type RunRepository struct {
	mu   sync.RWMutex
	runs map[string][]exports.RunRecord
}

// NewRunRepository constructs an empty history.
func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[string][]exports.RunRecord)}
}

// Save implements exports.RunRepository.
func (r *RunRepository) Save(ctx context.Context, run exports.RunRecord) error {
	if run.ScheduleID == "" {
		return exports.ErrEmptyScheduleID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ScheduleID] = append(r.runs[run.ScheduleID], run)
	return nil
}

// ListBySchedule implements exports.RunRepository.
func (r *RunRepository) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]exports.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs := r.runs[scheduleID]
	out := make([]exports.RunRecord, len(runs))
	copy(out, runs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
