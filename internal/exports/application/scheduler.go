package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	exports "metering-dashboard/internal/exports/domain"
	"metering-dashboard/internal/observability/metrics"
)

const (
	defaultTick          = time.Minute
	defaultMaxConcurrent = 4
	defaultRunTimeout    = 10 * time.Minute
	bookkeepTimeout      = 30 * time.Second
)

// Executor runs one schedule.
type Executor interface {
	Execute(ctx context.Context, schedule exports.ExportSchedule) exports.RunRecord
}

// RunRecorder records a finished run.
type RunRecorder interface {
	Record(ctx context.Context, run exports.RunRecord) error
}

// DueSource lists due schedules.
type DueSource interface {
	Due(ctx context.Context) ([]exports.ExportSchedule, error)
}

// SchedulerConfig tunes the poll loop.
type SchedulerConfig struct {
	Tick          time.Duration
	MaxConcurrent int
	RunTimeout    time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaultRunTimeout
	}
	return c
}

// Scheduler is the poll loop. It only hands due schedules to workers; a given
// schedule id never has two executions in flight.
type Scheduler struct {
	poller   DueSource
	executor Executor
	recorder RunRecorder
	cfg      SchedulerConfig
	running  *RunningSet
	slots    chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewScheduler constructs a scheduler.
func NewScheduler(poller DueSource, executor Executor, recorder RunRecorder, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if poller == nil {
		return nil, errors.New("scheduler: nil poller")
	}
	if executor == nil {
		return nil, errors.New("scheduler: nil executor")
	}
	if recorder == nil {
		return nil, errors.New("scheduler: nil recorder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Scheduler{
		poller:   poller,
		executor: executor,
		recorder: recorder,
		cfg:      cfg,
		running:  NewRunningSet(),
		slots:    make(chan struct{}, cfg.MaxConcurrent),
		logger:   logger,
	}, nil
}

// Start polls on every tick until ctx is done. It returns immediately after
// ctx is cancelled; use Wait to let in-flight executions finish.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.RunDueSchedules(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunDueSchedules(ctx)
		}
	}
}

// RunDueSchedules polls once and starts an execution for every due schedule
// that is not already running, as long as worker capacity allows. Schedules
// left over stay due and are offered again on the next poll. It returns the
// number of executions started.
func (s *Scheduler) RunDueSchedules(ctx context.Context) int {
	due, err := s.poller.Due(ctx)
	if err != nil {
		metrics.IncPollError()
		s.logger.Error("due schedule poll failed", zap.Error(err))
		return 0
	}
	metrics.SetDueSchedules(len(due))

	started := 0
	for _, schedule := range due {
		if !s.running.TryAcquire(schedule.ID) {
			metrics.IncRunSkipped("running")
			continue
		}
		select {
		case s.slots <- struct{}{}:
		default:
			s.running.Release(schedule.ID)
			metrics.IncRunSkipped("capacity")
			s.logger.Info("worker capacity exhausted, deferring", zap.String("schedule_id", schedule.ID))
			continue
		}
		started++
		s.wg.Add(1)
		go s.execute(ctx, schedule)
	}
	return started
}

func (s *Scheduler) execute(parent context.Context, schedule exports.ExportSchedule) {
	metrics.IncInFlight()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("export run panicked", zap.String("schedule_id", schedule.ID), zap.Any("panic", rec))
		}
		<-s.slots
		s.running.Release(schedule.ID)
		metrics.DecInFlight()
		s.wg.Done()
	}()

	// In-flight runs finish even when the loop is shutting down.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.RunTimeout)
	defer cancel()

	run := s.executor.Execute(ctx, schedule)

	// A run that hit RunTimeout still gets its history row and next run.
	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(parent), bookkeepTimeout)
	defer recordCancel()
	if err := s.recorder.Record(recordCtx, run); err != nil {
		s.logger.Error("run bookkeeping failed",
			zap.String("schedule_id", schedule.ID),
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

// Wait blocks until in-flight executions finish or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a schedule has an execution in flight.
func (s *Scheduler) Running(id string) bool {
	return s.running.Running(id)
}
