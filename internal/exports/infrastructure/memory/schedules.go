package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	exports "metering-dashboard/internal/exports/domain"
)

// ScheduleRepository is an in-memory schedule store.
type ScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]exports.ExportSchedule
	deleted   map[string]time.Time
}

// NewScheduleRepository constructs an empty store.
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{
		schedules: make(map[string]exports.ExportSchedule),
		deleted:   make(map[string]time.Time),
	}
}

// Get implements exports.ScheduleRepository.
func (r *ScheduleRepository) Get(ctx context.Context, id string) (*exports.ExportSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schedule, ok := r.schedules[id]
	if !ok {
		return nil, nil
	}
	out := clone(schedule)
	return &out, nil
}

// List implements exports.ScheduleRepository.
func (r *ScheduleRepository) List(ctx context.Context) ([]exports.ExportSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]exports.ExportSchedule, 0, len(r.schedules))
	for _, schedule := range r.schedules {
		out = append(out, clone(schedule))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Save implements exports.ScheduleRepository.
func (r *ScheduleRepository) Save(ctx context.Context, schedule *exports.ExportSchedule) error {
	if schedule == nil {
		return exports.ErrNilSchedule
	}
	if schedule.ID == "" {
		return exports.ErrEmptyScheduleID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.ID] = clone(*schedule)
	delete(r.deleted, schedule.ID)
	return nil
}

// UpdateConfig implements exports.ScheduleRepository.
func (r *ScheduleRepository) UpdateConfig(ctx context.Context, schedule *exports.ExportSchedule, nextRun *time.Time) (bool, error) {
	if schedule == nil {
		return false, exports.ErrNilSchedule
	}
	if schedule.ID == "" {
		return false, exports.ErrEmptyScheduleID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.schedules[schedule.ID]
	if !ok {
		return false, nil
	}
	updated := clone(*schedule)
	updated.CreatedAt = stored.CreatedAt
	updated.LastRun = stored.LastRun
	updated.RunCount = stored.RunCount
	updated.NextRun = stored.NextRun
	if nextRun != nil {
		next := *nextRun
		updated.NextRun = &next
	}
	r.schedules[schedule.ID] = updated
	return true, nil
}

// Delete implements exports.ScheduleRepository.
func (r *ScheduleRepository) Delete(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return exports.ErrScheduleNotFound
	}
	delete(r.schedules, id)
	r.deleted[id] = at
	return nil
}

// ListDue implements exports.ScheduleRepository.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]exports.ExportSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []exports.ExportSchedule
	for _, schedule := range r.schedules {
		if schedule.Due(now) {
			out = append(out, clone(schedule))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextRun.Equal(*out[j].NextRun) {
			return out[i].NextRun.Before(*out[j].NextRun)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkRun implements exports.ScheduleRepository.
func (r *ScheduleRepository) MarkRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	schedule, ok := r.schedules[id]
	if !ok {
		return false, nil
	}
	last := lastRun
	schedule.LastRun = &last
	schedule.RunCount++
	if nextRun != nil {
		next := *nextRun
		schedule.NextRun = &next
	}
	r.schedules[id] = schedule
	return true, nil
}

func clone(s exports.ExportSchedule) exports.ExportSchedule {
	s.MeterRefs = append([]string(nil), s.MeterRefs...)
	s.ParameterRefs = append([]string(nil), s.ParameterRefs...)
	s.Recipients.Email.IDs = append([]string(nil), s.Recipients.Email.IDs...)
	s.Recipients.Messaging.IDs = append([]string(nil), s.Recipients.Messaging.IDs...)
	if s.LastRun != nil {
		last := *s.LastRun
		s.LastRun = &last
	}
	if s.NextRun != nil {
		next := *s.NextRun
		s.NextRun = &next
	}
	return s
}
