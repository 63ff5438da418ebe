package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"metering-dashboard/internal/delivery"
	exports "metering-dashboard/internal/exports/domain"
	exmemory "metering-dashboard/internal/exports/infrastructure/memory"
	mdapp "metering-dashboard/internal/masterdata/application"
	masterdata "metering-dashboard/internal/masterdata/domain"
	mdmemory "metering-dashboard/internal/masterdata/infrastructure/memory"
	reports "metering-dashboard/internal/reports/domain"
	"metering-dashboard/internal/reports/render"
	telemetryapp "metering-dashboard/internal/telemetry/application"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// readingStore serves one reading every minute of the queried window.
type readingStore struct {
	mu      sync.Mutex
	queried []string
}

func (s *readingStore) Query(ctx context.Context, deviceIDs []string, window telemetry.Window) ([]telemetry.ReadingRow, error) {
	s.mu.Lock()
	s.queried = append(s.queried, deviceIDs...)
	s.mu.Unlock()

	var rows []telemetry.ReadingRow
	for _, id := range deviceIDs {
		i := 0
		for ts := window.Start; !ts.After(window.End); ts = ts.Add(time.Minute) {
			rows = append(rows, telemetry.ReadingRow{
				Timestamp: ts,
				DeviceID:  id,
				Values: map[telemetry.Column]float64{
					telemetry.ColumnDemandW:    100,
					telemetry.ColumnKWhOnPeak:  float64(i) * 0.1,
					telemetry.ColumnKWhOffPeak: float64(i) * 0.05,
					telemetry.ColumnPFTotal:    0.95,
				},
			})
			i++
		}
	}
	return rows, nil
}

type sentMail struct {
	to         string
	subject    string
	body       string
	attachment *delivery.Attachment
}

type recordingMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]error
}

func (m *recordingMailer) SendMail(ctx context.Context, to, subject, body string, attachment *delivery.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body, attachment: attachment})
	return nil
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

type harness struct {
	clock      *fakeClock
	schedules  *exmemory.ScheduleRepository
	runs       *exmemory.RunRepository
	directory  *mdmemory.Directory
	store      *readingStore
	mailer     *recordingMailer
	service    *ScheduleService
	runner     *Runner
	bookkeeper *Bookkeeper
	scheduler  *Scheduler
}

func newHarness(t *testing.T, now time.Time, opts ...RunnerOption) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(now),
		schedules: exmemory.NewScheduleRepository(),
		runs:      exmemory.NewRunRepository(),
		directory: mdmemory.NewDirectory(),
		store:     &readingStore{},
		mailer:    &recordingMailer{failFor: map[string]error{}},
	}
	h.directory.PutMeter(masterdata.MeterDirectoryEntry{Ref: "m1", DeviceID: "11", Name: "Main incomer", LocationPath: []string{"Plant", "B1"}})
	h.directory.PutMeter(masterdata.MeterDirectoryEntry{Ref: "m2", DeviceID: "12", Name: "Chiller", LocationPath: []string{"Plant", "B2"}})
	h.directory.PutRecipient(masterdata.Recipient{ID: "u1", Name: "Ann", Email: "ann@example.com", MessagingID: "line-ann"})
	h.directory.PutRecipient(masterdata.Recipient{ID: "u2", Name: "Bo", Email: "bo@example.com"})
	h.directory.SetGroup("ops", "u1", "u2")

	var err error
	h.service, err = NewScheduleService(h.schedules, h.runs, WithServiceClock(h.clock))
	require.NoError(t, err)

	resolver, err := mdapp.NewMeterResolver(h.directory)
	require.NoError(t, err)
	fetcher, err := telemetryapp.NewFetcher(h.store)
	require.NoError(t, err)
	dispatcher, err := delivery.NewDispatcher(h.directory)
	require.NoError(t, err)
	email, err := delivery.NewEmailChannel(h.mailer)
	require.NoError(t, err)

	runnerOpts := append([]RunnerOption{WithChannel(email), WithRunnerClock(h.clock)}, opts...)
	h.runner, err = NewRunner(resolver, fetcher, render.NewRenderer(), dispatcher, runnerOpts...)
	require.NoError(t, err)

	h.bookkeeper, err = NewBookkeeper(h.schedules, h.runs, h.clock, time.UTC, nil)
	require.NoError(t, err)
	poller, err := NewDuePoller(h.schedules, h.clock)
	require.NoError(t, err)
	h.scheduler, err = NewScheduler(poller, h.runner, h.bookkeeper, SchedulerConfig{MaxConcurrent: 2}, nil)
	require.NoError(t, err)
	return h
}

func dailySchedule(id string) exports.ExportSchedule {
	return exports.ExportSchedule{
		ID:                  id,
		Title:               "Daily Energy Report",
		Frequency:           exports.FrequencyDaily,
		TimeOfDay:           telemetry.ClockTime{Hour: 9},
		Format:              reports.FormatCSV,
		ReadIntervalMinutes: 15,
		MeterRefs:           []string{"m1", "m2"},
		ParameterRefs:       []string{"demand_w", "kwh on peak", "Reactive Energy"},
		Recipients:          exports.Recipients{Email: masterdata.RecipientSet{GroupID: "ops"}},
		Enabled:             true,
	}
}

func (h *harness) runDue(t *testing.T) int {
	t.Helper()
	started := h.scheduler.RunDueSchedules(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.scheduler.Wait(ctx))
	return started
}

func (h *harness) schedule(t *testing.T, id string) *exports.ExportSchedule {
	t.Helper()
	s, err := h.schedules.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (h *harness) history(t *testing.T, id string) []exports.RunRecord {
	t.Helper()
	runs, err := h.runs.ListBySchedule(context.Background(), id, 0)
	require.NoError(t, err)
	return runs
}
