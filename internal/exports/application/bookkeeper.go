package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	exports "metering-dashboard/internal/exports/domain"
)

// Bookkeeper records a finished run and advances the schedule.
type Bookkeeper struct {
	schedules exports.ScheduleRepository
	runs      exports.RunRepository
	clock     Clock
	location  *time.Location
	logger    *zap.Logger
}

// NewBookkeeper constructs a bookkeeper.
func NewBookkeeper(schedules exports.ScheduleRepository, runs exports.RunRepository, clock Clock, loc *time.Location, logger *zap.Logger) (*Bookkeeper, error) {
	if schedules == nil {
		return nil, errors.New("bookkeeper: nil schedule repository")
	}
	if runs == nil {
		return nil, errors.New("bookkeeper: nil run repository")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bookkeeper{schedules: schedules, runs: runs, clock: clock, location: loc, logger: logger}, nil
}

// Record stores the run, then sets last run, increments the run count and
// recomputes the next run from the current time. The schedule is reloaded so
// edits made during the run are honored: a deleted schedule only gets history,
// a disabled one keeps its next run untouched.
func (b *Bookkeeper) Record(ctx context.Context, run exports.RunRecord) error {
	if err := b.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("bookkeeper: save run: %w", err)
	}
	current, err := b.schedules.Get(ctx, run.ScheduleID)
	if err != nil {
		return fmt.Errorf("bookkeeper: reload schedule: %w", err)
	}
	if current == nil {
		b.logger.Info("schedule removed during run", zap.String("schedule_id", run.ScheduleID))
		return nil
	}

	var next *time.Time
	if current.Enabled {
		n, err := current.NextRunAfter(b.clock.Now().In(b.location))
		if err != nil {
			return fmt.Errorf("bookkeeper: next run: %w", err)
		}
		next = &n
	}
	found, err := b.schedules.MarkRun(ctx, run.ScheduleID, run.StartedAt, next)
	if err != nil {
		return fmt.Errorf("bookkeeper: mark run: %w", err)
	}
	if !found {
		b.logger.Info("schedule removed during run", zap.String("schedule_id", run.ScheduleID))
	}
	return nil
}
