package application

import (
	"context"
	"errors"
	"sort"

	exports "metering-dashboard/internal/exports/domain"
)

// DuePoller finds schedules ready to run. It never writes.
type DuePoller struct {
	schedules exports.ScheduleRepository
	clock     Clock
}

// NewDuePoller constructs a poller.
func NewDuePoller(schedules exports.ScheduleRepository, clock Clock) (*DuePoller, error) {
	if schedules == nil {
		return nil, errors.New("due poller: nil schedule repository")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &DuePoller{schedules: schedules, clock: clock}, nil
}

// Due returns enabled schedules whose next run has arrived, ascending by next
// run.
func (p *DuePoller) Due(ctx context.Context) ([]exports.ExportSchedule, error) {
	now := p.clock.Now()
	candidates, err := p.schedules.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}
	due := candidates[:0]
	for _, schedule := range candidates {
		if schedule.Due(now) {
			due = append(due, schedule)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextRun.Before(*due[j].NextRun)
	})
	return due, nil
}
