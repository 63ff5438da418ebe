package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "schedules_enabled",
			Help: "Enabled export schedules",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM export_schedules WHERE enabled AND deleted_at IS NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "schedules_overdue",
			Help: "Enabled schedules whose next run is more than five minutes past",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM export_schedules WHERE enabled AND deleted_at IS NULL AND next_run < NOW() - INTERVAL '5 minutes'")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
