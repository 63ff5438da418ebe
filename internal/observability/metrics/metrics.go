package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "exports_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runsTotal   *prometheus.CounterVec
	runLatency  *prometheus.HistogramVec
	runsSkipped *prometheus.CounterVec

	renderTotal   *prometheus.CounterVec
	renderLatency *prometheus.HistogramVec

	deliveriesTotal *prometheus.CounterVec

	fetchFaults        prometheus.Counter
	resolutionMisses   *prometheus.CounterVec
	dueSchedules       prometheus.Gauge
	inFlightExecutions prometheus.Gauge
	pollErrors         prometheus.Counter
)

// Init registers export metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total schedule executions by status",
			},
			[]string{"status"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Schedule execution latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		)
		runsSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_skipped_total",
				Help: "Due schedules not started by reason",
			},
			[]string{"reason"},
		)

		renderTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "render_total",
				Help: "Total report renders by format and result",
			},
			[]string{"format", "result"},
		)
		renderLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "render_latency_seconds",
				Help:    "Report render latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		deliveriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "deliveries_total",
				Help: "Total per-recipient deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)

		fetchFaults = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_faults_total",
				Help: "Total per-device time-series fetch failures",
			},
		)
		resolutionMisses = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "resolution_misses_total",
				Help: "Total unresolved logical references by kind",
			},
			[]string{"kind"},
		)
		dueSchedules = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "due_schedules",
				Help: "Schedules found due by the last poll",
			},
		)
		inFlightExecutions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "in_flight_executions",
				Help: "Schedule executions currently running",
			},
		)
		pollErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_errors_total",
				Help: "Total failed due-schedule polls",
			},
		)

		prometheus.MustRegister(
			runsTotal,
			runLatency,
			runsSkipped,
			renderTotal,
			renderLatency,
			deliveriesTotal,
			fetchFaults,
			resolutionMisses,
			dueSchedules,
			inFlightExecutions,
			pollErrors,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records an execution's duration and status.
func ObserveRun(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(status).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// IncRunSkipped counts a due schedule that was not started.
func IncRunSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if runsSkipped != nil {
		runsSkipped.WithLabelValues(reason).Inc()
	}
}

// ObserveRender records render latency and result.
func ObserveRender(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if renderTotal != nil {
		renderTotal.WithLabelValues(format, result).Inc()
	}
	if renderLatency != nil {
		renderLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// AddDeliveries counts per-recipient deliveries.
func AddDeliveries(channel string, succeeded, failed int) {
	if channel == "" {
		channel = "unknown"
	}
	if deliveriesTotal == nil {
		return
	}
	if succeeded > 0 {
		deliveriesTotal.WithLabelValues(channel, resultSuccess).Add(float64(succeeded))
	}
	if failed > 0 {
		deliveriesTotal.WithLabelValues(channel, resultError).Add(float64(failed))
	}
}

// AddFetchFaults counts failed device fetches.
func AddFetchFaults(count int) {
	if count <= 0 {
		return
	}
	if fetchFaults != nil {
		fetchFaults.Add(float64(count))
	}
}

// AddResolutionMisses counts unresolved references.
func AddResolutionMisses(kind string, count int) {
	if count <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if resolutionMisses != nil {
		resolutionMisses.WithLabelValues(kind).Add(float64(count))
	}
}

// SetDueSchedules sets the due-schedule gauge.
func SetDueSchedules(count int) {
	if dueSchedules != nil {
		dueSchedules.Set(float64(count))
	}
}

// IncInFlight marks an execution as started.
func IncInFlight() {
	if inFlightExecutions != nil {
		inFlightExecutions.Inc()
	}
}

// DecInFlight marks an execution as finished.
func DecInFlight() {
	if inFlightExecutions != nil {
		inFlightExecutions.Dec()
	}
}

// IncPollError counts a failed poll.
func IncPollError() {
	if pollErrors != nil {
		pollErrors.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
