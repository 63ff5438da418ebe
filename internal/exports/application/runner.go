package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	billing "metering-dashboard/internal/billing/domain"
	"metering-dashboard/internal/delivery"
	exports "metering-dashboard/internal/exports/domain"
	mdapp "metering-dashboard/internal/masterdata/application"
	masterdata "metering-dashboard/internal/masterdata/domain"
	"metering-dashboard/internal/observability/metrics"
	"metering-dashboard/internal/reports/archive"
	reports "metering-dashboard/internal/reports/domain"
	telemetryapp "metering-dashboard/internal/telemetry/application"
	telemetry "metering-dashboard/internal/telemetry/domain"
)

// DirectorySnapshotter loads a meter directory snapshot.
type DirectorySnapshotter interface {
	Snapshot(ctx context.Context) (*mdapp.Snapshot, error)
}

// ReadingFetcher loads readings per device, resampled and at full resolution.
type ReadingFetcher interface {
	Fetch(ctx context.Context, deviceIDs []string, window telemetry.Window, intervalMinutes int) (telemetryapp.FetchResult, error)
}

// ReportRenderer renders a frame.
type ReportRenderer interface {
	Render(frame reports.Frame, format reports.Format, meta reports.Metadata) (reports.Artifact, error)
}

// ArtifactDispatcher delivers an artifact over one channel.
type ArtifactDispatcher interface {
	Dispatch(ctx context.Context, channel delivery.Channel, set masterdata.RecipientSet, artifact reports.Artifact, msg delivery.Message) (delivery.Result, error)
}

// Runner executes one schedule: resolve, fetch, normalize, bill, render,
// archive, dispatch. It never writes schedule state.
type Runner struct {
	resolver   DirectorySnapshotter
	fetcher    ReadingFetcher
	renderer   ReportRenderer
	dispatcher ArtifactDispatcher
	calculator *billing.Calculator
	archive    archive.Store
	channels   map[delivery.Kind]delivery.Channel
	template   *delivery.Template
	clock      Clock
	location   *time.Location
	logger     *zap.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithCalculator enables billing for schedules that ask for it.
func WithCalculator(calculator *billing.Calculator) RunnerOption {
	return func(r *Runner) {
		r.calculator = calculator
	}
}

// WithArchive stores every artifact and links it in notifications.
func WithArchive(store archive.Store) RunnerOption {
	return func(r *Runner) {
		r.archive = store
	}
}

// WithChannel registers a delivery channel.
func WithChannel(channel delivery.Channel) RunnerOption {
	return func(r *Runner) {
		if channel != nil {
			r.channels[channel.Kind()] = channel
		}
	}
}

// WithTemplate overrides the notification template.
func WithTemplate(template *delivery.Template) RunnerOption {
	return func(r *Runner) {
		if template != nil {
			r.template = template
		}
	}
}

// WithRunnerClock overrides the clock.
func WithRunnerClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRunnerLocation sets the timezone implicit windows are evaluated in.
func WithRunnerLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner constructs a runner.
func NewRunner(resolver DirectorySnapshotter, fetcher ReadingFetcher, renderer ReportRenderer, dispatcher ArtifactDispatcher, opts ...RunnerOption) (*Runner, error) {
	if resolver == nil {
		return nil, errors.New("export runner: nil resolver")
	}
	if fetcher == nil {
		return nil, errors.New("export runner: nil fetcher")
	}
	if renderer == nil {
		return nil, errors.New("export runner: nil renderer")
	}
	if dispatcher == nil {
		return nil, errors.New("export runner: nil dispatcher")
	}
	defaultTemplate, err := delivery.NewTemplate("", "")
	if err != nil {
		return nil, err
	}
	r := &Runner{
		resolver:   resolver,
		fetcher:    fetcher,
		renderer:   renderer,
		dispatcher: dispatcher,
		channels:   make(map[delivery.Kind]delivery.Channel),
		template:   defaultTemplate,
		clock:      systemClock{},
		location:   time.UTC,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Execute runs the pipeline for one schedule and returns its run record.
// Failures are recorded in the record, never returned.
func (r *Runner) Execute(ctx context.Context, schedule exports.ExportSchedule) exports.RunRecord {
	started := r.clock.Now()
	run := exports.RunRecord{
		ID:         uuid.NewString(),
		ScheduleID: schedule.ID,
		StartedAt:  started.UTC(),
	}
	logger := r.logger.With(zap.String("schedule_id", schedule.ID), zap.String("run_id", run.ID))
	logger.Info("export run started")

	r.execute(ctx, schedule, &run, logger)

	run.FinishedAt = r.clock.Now().UTC()
	metrics.ObserveRun(string(run.Status), run.FinishedAt.Sub(run.StartedAt))
	logger.Info("export run finished",
		zap.String("status", string(run.Status)),
		zap.Int("issues", len(run.Issues)),
		zap.String("artifact", run.ArtifactFilename),
	)
	return run
}

func (r *Runner) execute(ctx context.Context, schedule exports.ExportSchedule, run *exports.RunRecord, logger *zap.Logger) {
	fail := func(kind, ref string, err error) {
		run.AddIssue(kind, ref, err.Error())
		run.Status = exports.RunFailed
		logger.Error("export run failed", zap.String("stage", kind), zap.Error(err))
	}
	now := r.clock.Now().In(r.location)

	snapshot, err := r.resolver.Snapshot(ctx)
	if err != nil {
		fail(exports.IssueInternal, "", err)
		return
	}
	meters, misses := snapshot.Resolve(schedule.MeterRefs)
	for _, miss := range misses {
		run.AddIssue(exports.IssueResolution, miss.Ref, miss.Error())
		logger.Warn("meter reference unresolved", zap.String("meter_ref", miss.Ref))
	}
	metrics.AddResolutionMisses(masterdata.RefKindMeter, len(misses))

	window, err := exports.ResolveWindow(schedule, now, r.location)
	if err != nil {
		fail(exports.IssueInternal, "", err)
		return
	}

	rowsByDevice := map[string][]telemetry.ReadingRow{}
	rawByDevice := map[string][]telemetry.ReadingRow{}
	faulted := map[string]bool{}
	if deviceIDs := uniqueDevices(meters); len(deviceIDs) > 0 {
		fetched, err := r.fetcher.Fetch(ctx, deviceIDs, window, schedule.ReadIntervalMinutes)
		if err != nil {
			fail(exports.IssueFetch, "", err)
			return
		}
		for _, fault := range fetched.Faults {
			run.AddIssue(exports.IssueFetch, fault.DeviceID, fault.Error())
			faulted[fault.DeviceID] = true
		}
		metrics.AddFetchFaults(len(fetched.Faults))
		rowsByDevice = groupByDevice(fetched.Rows)
		rawByDevice = groupByDevice(fetched.Raw)
	}

	frame := buildFrame(meters, rowsByDevice, schedule.ParameterRefs)
	if schedule.IncludeBilling && r.calculator != nil {
		frame.Billing = r.bill(meters, rawByDevice, faulted, run)
	}

	meterNames := make([]string, 0, len(meters))
	for _, meter := range meters {
		meterNames = append(meterNames, meter.DisplayName())
	}
	meta := reports.Metadata{
		Title:       schedule.Title,
		MeterNames:  meterNames,
		Window:      window,
		GeneratedAt: now,
	}
	renderStart := time.Now()
	artifact, err := r.renderer.Render(frame, schedule.Format, meta)
	if err != nil {
		metrics.ObserveRender(string(schedule.Format), metrics.ResultError, time.Since(renderStart))
		fail(exports.IssueRender, string(schedule.Format), err)
		return
	}
	metrics.ObserveRender(string(schedule.Format), metrics.ResultSuccess, time.Since(renderStart))
	run.ArtifactFilename = artifact.Filename

	if r.archive != nil {
		link, err := r.archive.Put(ctx, schedule.ID, artifact)
		if err != nil {
			run.AddIssue(exports.IssueArchive, artifact.Filename, err.Error())
			logger.Warn("artifact archive failed", zap.Error(err))
		} else {
			run.ArtifactLink = link
		}
	}

	msg := r.message(schedule, meta, artifact, run)
	run.Deliveries = append(run.Deliveries, r.deliver(ctx, delivery.KindEmail, schedule.Recipients.Email, artifact, msg, run, logger)...)
	run.Deliveries = append(run.Deliveries, r.deliver(ctx, delivery.KindMessaging, schedule.Recipients.Messaging, artifact, msg, run, logger)...)
	run.Status = exports.DeliveryStatus(run.Deliveries)
}

// bill prices every meter over the full-resolution window rows. Meters whose
// device could not be read get no bill.
func (r *Runner) bill(meters []masterdata.MeterDirectoryEntry, rawByDevice map[string][]telemetry.ReadingRow, faulted map[string]bool, run *exports.RunRecord) []billing.Result {
	usages := make([]billing.Usage, 0, len(meters))
	for _, meter := range meters {
		if faulted[meter.DeviceID] {
			run.AddIssue(exports.IssueBilling, meter.Ref, "not billed: readings for device "+meter.DeviceID+" unavailable")
			continue
		}
		usages = append(usages, billing.UsageFromReadings(meter.Ref, rawByDevice[meter.DeviceID]))
	}
	results, failures := r.calculator.CalculateAll(usages)
	out := make([]billing.Result, 0, len(results))
	for _, usage := range usages {
		if err, failed := failures[usage.MeterRef]; failed {
			run.AddIssue(exports.IssueBilling, usage.MeterRef, err.Error())
			continue
		}
		out = append(out, results[usage.MeterRef])
	}
	return out
}

func (r *Runner) message(schedule exports.ExportSchedule, meta reports.Metadata, artifact reports.Artifact, run *exports.RunRecord) delivery.Message {
	loc := r.location
	data := delivery.TemplateData{
		ScheduleID:  schedule.ID,
		Title:       schedule.Title,
		Meters:      strings.Join(meta.MeterNames, ", "),
		Window:      fmt.Sprintf("%s to %s", meta.Window.Start.In(loc).Format("2006-01-02 15:04"), meta.Window.End.In(loc).Format("2006-01-02 15:04")),
		GeneratedAt: meta.GeneratedAt.In(loc).Format("2006-01-02 15:04"),
		Filename:    artifact.Filename,
		Format:      string(artifact.Format),
		Link:        run.ArtifactLink,
		Issues:      len(run.Issues),
	}
	msg, err := r.template.Render(data)
	if err != nil {
		run.AddIssue(exports.IssueInternal, "template", err.Error())
		return delivery.Message{
			Subject: schedule.Title,
			Body:    fmt.Sprintf("%s\n%s\n", schedule.Title, data.Window),
			Link:    run.ArtifactLink,
		}
	}
	return msg
}

// deliver dispatches to one channel. A channel without recipients yields no
// outcome.
func (r *Runner) deliver(ctx context.Context, kind delivery.Kind, set masterdata.RecipientSet, artifact reports.Artifact, msg delivery.Message, run *exports.RunRecord, logger *zap.Logger) []exports.ChannelOutcome {
	if set.Empty() {
		return nil
	}
	outcome := exports.ChannelOutcome{Channel: string(kind)}
	channel, ok := r.channels[kind]
	if !ok {
		outcome.Error = "channel not configured"
		run.AddIssue(exports.IssueDelivery, string(kind), outcome.Error)
		logger.Warn("delivery channel not configured", zap.String("channel", string(kind)))
		return []exports.ChannelOutcome{outcome}
	}

	result, err := r.dispatcher.Dispatch(ctx, channel, set, artifact, msg)
	for _, miss := range result.Unresolved {
		run.AddIssue(exports.IssueResolution, miss.Ref, miss.Error())
	}
	metrics.AddResolutionMisses(masterdata.RefKindRecipient, len(result.Unresolved))
	if err != nil {
		outcome.Error = err.Error()
		run.AddIssue(exports.IssueDelivery, string(kind), err.Error())
		logger.Warn("delivery skipped", zap.String("channel", string(kind)), zap.Error(err))
		return []exports.ChannelOutcome{outcome}
	}
	outcome.Attempted = result.Attempted
	outcome.Succeeded = result.Succeeded
	outcome.Failed = result.Failed
	for _, failure := range result.Failures {
		run.AddIssue(exports.IssueDelivery, failure.RecipientID, failure.Err.Error())
	}
	metrics.AddDeliveries(string(kind), result.Succeeded, result.Failed)
	logger.Info("delivery finished",
		zap.String("channel", string(kind)),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", len(result.Skipped)),
	)
	return []exports.ChannelOutcome{outcome}
}

func uniqueDevices(meters []masterdata.MeterDirectoryEntry) []string {
	seen := make(map[string]struct{}, len(meters))
	out := make([]string, 0, len(meters))
	for _, meter := range meters {
		if _, dup := seen[meter.DeviceID]; dup {
			continue
		}
		seen[meter.DeviceID] = struct{}{}
		out = append(out, meter.DeviceID)
	}
	return out
}
