package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	exports "metering-dashboard/internal/exports/domain"
)

const defaultRunHistoryLimit = 50

// ScheduleService is the configuration API over export schedules.
type ScheduleService struct {
	schedules exports.ScheduleRepository
	runs      exports.RunRepository
	clock     Clock
	location  *time.Location
	logger    *zap.Logger
}

// ServiceOption configures the service.
type ServiceOption func(*ScheduleService)

// WithServiceClock overrides the clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *ScheduleService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithServiceLocation sets the timezone schedules fire in.
func WithServiceLocation(loc *time.Location) ServiceOption {
	return func(s *ScheduleService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *ScheduleService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduleService constructs the service.
func NewScheduleService(schedules exports.ScheduleRepository, runs exports.RunRepository, opts ...ServiceOption) (*ScheduleService, error) {
	if schedules == nil {
		return nil, errors.New("schedule service: nil schedule repository")
	}
	if runs == nil {
		return nil, errors.New("schedule service: nil run repository")
	}
	s := &ScheduleService{
		schedules: schedules,
		runs:      runs,
		clock:     systemClock{},
		location:  time.UTC,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PreviewNextRun computes when a schedule would next fire after now. It has no
// side effects and works on unsaved schedules.
func PreviewNextRun(schedule exports.ExportSchedule, now time.Time) (time.Time, error) {
	return schedule.NextRunAfter(now)
}

// PreviewNextRun previews against the service clock and timezone.
func (s *ScheduleService) PreviewNextRun(schedule exports.ExportSchedule) (time.Time, error) {
	return PreviewNextRun(schedule, s.now())
}

// Create validates and stores a new schedule.
func (s *ScheduleService) Create(ctx context.Context, schedule exports.ExportSchedule) (*exports.ExportSchedule, error) {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.schedules.Get(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &exports.SchedulingError{Field: "id", Reason: "schedule already exists"}
	}

	now := s.now()
	schedule.CreatedAt = now.UTC()
	schedule.UpdatedAt = now.UTC()
	schedule.LastRun = nil
	schedule.RunCount = 0
	schedule.NextRun = nil
	if schedule.Enabled {
		next, err := schedule.NextRunAfter(now)
		if err != nil {
			return nil, err
		}
		schedule.NextRun = &next
	}
	if err := s.schedules.Save(ctx, &schedule); err != nil {
		return nil, err
	}
	s.logger.Info("export schedule created", zap.String("schedule_id", schedule.ID), zap.Timep("next_run", schedule.NextRun))
	return &schedule, nil
}

// Update replaces a schedule's configuration. Bookkeeping fields are left to
// the store so a run finishing concurrently is not undone; the next run is
// recomputed when the schedule is re-enabled or its recurrence changed.
func (s *ScheduleService) Update(ctx context.Context, schedule exports.ExportSchedule) (*exports.ExportSchedule, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.schedules.Get(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, exports.ErrScheduleNotFound
	}

	now := s.now()
	schedule.UpdatedAt = now.UTC()
	var next *time.Time
	recompute := schedule.Enabled &&
		(!existing.Enabled || existing.NextRun == nil || !schedule.SameRecurrence(*existing))
	if recompute {
		n, err := schedule.NextRunAfter(now)
		if err != nil {
			return nil, err
		}
		next = &n
	}
	found, err := s.schedules.UpdateConfig(ctx, &schedule, next)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, exports.ErrScheduleNotFound
	}
	updated, err := s.schedules.Get(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, exports.ErrScheduleNotFound
	}
	s.logger.Info("export schedule updated",
		zap.String("schedule_id", updated.ID),
		zap.Bool("enabled", updated.Enabled),
		zap.Timep("next_run", updated.NextRun),
	)
	return updated, nil
}

// SetEnabled toggles a schedule.
func (s *ScheduleService) SetEnabled(ctx context.Context, id string, enabled bool) (*exports.ExportSchedule, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Enabled = enabled
	return s.Update(ctx, *existing)
}

// Delete soft-deletes a schedule. Run history is kept.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("export schedule deleted", zap.String("schedule_id", id))
	return nil
}

// Get loads a schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*exports.ExportSchedule, error) {
	if id == "" {
		return nil, exports.ErrEmptyScheduleID
	}
	schedule, err := s.schedules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, exports.ErrScheduleNotFound
	}
	return schedule, nil
}

// List loads every schedule.
func (s *ScheduleService) List(ctx context.Context) ([]exports.ExportSchedule, error) {
	return s.schedules.List(ctx)
}

// Runs lists a schedule's history, newest first.
func (s *ScheduleService) Runs(ctx context.Context, id string, limit int) ([]exports.RunRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRunHistoryLimit
	}
	return s.runs.ListBySchedule(ctx, id, limit)
}

func (s *ScheduleService) now() time.Time {
	return s.clock.Now().In(s.location)
}
