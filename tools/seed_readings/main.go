package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"metering-dashboard/internal/logging"
	telemetry "metering-dashboard/internal/telemetry/domain"
	telemetrypostgres "metering-dashboard/internal/telemetry/infrastructure/postgres"
)

type config struct {
	dsn         string
	meterPrefix string
	meterCount  int
	startDate   string
	days        int
	stepMinutes int
	seedMeters  bool
}

func main() {
	cfg := parseConfig()
	logger, err := logging.New(logging.Config{ServiceName: "seed-readings", Format: "console"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.dsn == "" {
		logger.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.meterCount <= 0 || cfg.days <= 0 || cfg.stepMinutes <= 0 {
		logger.Fatal("meter-count, days and step-minutes must be > 0")
	}
	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		logger.Fatal("invalid start-date", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	slaves := buildSlaveIDs(cfg.meterPrefix, cfg.meterCount)

	if cfg.seedMeters {
		if err := seedMeters(ctx, db, slaves); err != nil {
			logger.Fatal("seed meters", zap.Error(err))
		}
		logger.Info("meters seeded", zap.Int("count", len(slaves)))
	}

	query := telemetrypostgres.NewReadingQuery(db)
	for idx, slave := range slaves {
		for day := 0; day < cfg.days; day++ {
			dayStart := start.AddDate(0, 0, day)
			rows := synthesizeDay(slave, dayStart, cfg.stepMinutes, float64(idx+1))
			if err := query.Insert(ctx, rows); err != nil {
				logger.Fatal("insert readings", zap.String("slave_id", slave), zap.Error(err))
			}
		}
		logger.Info("readings seeded", zap.String("slave_id", slave), zap.Int("days", cfg.days))
	}
	logger.Info("seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.meterPrefix, "meter-prefix", envOrDefault("METER_PREFIX", "slave-"), "slave id prefix")
	flag.IntVar(&cfg.meterCount, "meter-count", envOrInt("METER_COUNT", 5), "number of meters to seed")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "start date (YYYY-MM-DD or RFC3339)")
	flag.IntVar(&cfg.days, "days", envOrInt("DAYS", 7), "number of days to seed")
	flag.IntVar(&cfg.stepMinutes, "step-minutes", envOrInt("STEP_MINUTES", 1), "minutes between samples")
	flag.BoolVar(&cfg.seedMeters, "seed-meters", envOrBool("SEED_METERS", true), "upsert meter directory rows")
	flag.Parse()
	return cfg
}

func parseStartDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour), nil
	}
	if strings.Contains(value, "T") {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func buildSlaveIDs(prefix string, count int) []string {
	list := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		list = append(list, fmt.Sprintf("%s%04d", prefix, i))
	}
	return list
}

func seedMeters(ctx context.Context, db *sql.DB, slaves []string) error {
	const insertSQL = `
INSERT INTO meters (ref, slave_id, name, location_path)
VALUES ($1, $2, $3, $4)
ON CONFLICT (ref)
DO UPDATE SET
	slave_id = EXCLUDED.slave_id,
	name = EXCLUDED.name,
	location_path = EXCLUDED.location_path,
	deleted_at = NULL`

	for idx, slave := range slaves {
		ref := fmt.Sprintf("meter-%04d", idx+1)
		name := fmt.Sprintf("Meter %d", idx+1)
		if _, err := db.ExecContext(ctx, insertSQL, ref, slave, name, "Seed Site / Building 1"); err != nil {
			return err
		}
	}
	return nil
}

// synthesizeDay builds a daily load curve peaking mid-afternoon. Energy
// registers are cumulative and split into on-peak (09:00-22:00 weekdays) and
// off-peak.
func synthesizeDay(slave string, dayStart time.Time, step int, scale float64) []telemetry.ReadingRow {
	rows := make([]telemetry.ReadingRow, 0, 1440/step)
	var onPeak, offPeak float64
	weekday := dayStart.Weekday() != time.Saturday && dayStart.Weekday() != time.Sunday
	for minute := 0; minute < 1440; minute += step {
		ts := dayStart.Add(time.Duration(minute) * time.Minute)
		hour := float64(minute) / 60
		demandW := scale * (4000 + 2500*math.Sin((hour-9)*math.Pi/12))
		if demandW < 500 {
			demandW = 500
		}
		pf := 0.88 + 0.08*math.Cos(hour*math.Pi/12)
		va := demandW / pf
		kwh := demandW * float64(step) / 60 / 1000
		if weekday && hour >= 9 && hour < 22 {
			onPeak += kwh
		} else {
			offPeak += kwh
		}
		rows = append(rows, telemetry.ReadingRow{
			Timestamp: ts,
			DeviceID:  slave,
			Values: map[telemetry.Column]float64{
				telemetry.ColumnDemandW:    demandW,
				telemetry.ColumnDemandVA:   va,
				telemetry.ColumnDemandVAR:  math.Sqrt(va*va - demandW*demandW),
				telemetry.ColumnPFTotal:    pf,
				telemetry.ColumnKWhOnPeak:  onPeak,
				telemetry.ColumnKWhOffPeak: offPeak,
				telemetry.ColumnKWhTotal:   onPeak + offPeak,
			},
		})
	}
	return rows
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
