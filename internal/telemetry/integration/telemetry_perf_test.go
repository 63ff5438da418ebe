package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	telemetry "metering-dashboard/internal/telemetry/domain"
	telemetrypostgres "metering-dashboard/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestReadings_7dInsert_1dQuery(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "meter_readings") {
		t.Skip("meter_readings missing; run migrations")
	}

	ctx := context.Background()
	deviceID := "perf-slave"
	start := time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	end := time.Now().UTC().Truncate(24 * time.Hour)

	_, _ = db.ExecContext(ctx, `DELETE FROM meter_readings WHERE slave_id = $1`, deviceID)

	query := telemetrypostgres.NewReadingQuery(db)

	insertStart := time.Now()
	for day := 0; day < 7; day++ {
		dayStart := start.AddDate(0, 0, day)
		rows := make([]telemetry.ReadingRow, 0, 1440)
		for minute := 0; minute < 1440; minute++ {
			rows = append(rows, telemetry.ReadingRow{
				Timestamp: dayStart.Add(time.Duration(minute) * time.Minute),
				DeviceID:  deviceID,
				Values: map[telemetry.Column]float64{
					telemetry.ColumnDemandW:  float64(minute%60) + 100,
					telemetry.ColumnPFTotal:  0.95,
					telemetry.ColumnKWhTotal: float64(day*1440 + minute),
				},
			})
		}
		if err := query.Insert(ctx, rows); err != nil {
			t.Fatalf("insert readings: %v", err)
		}
	}
	insertElapsed := time.Since(insertStart)

	queryStart := time.Now()
	window := telemetry.Window{Start: end.AddDate(0, 0, -1), End: end.Add(-time.Nanosecond)}
	rows, err := query.Query(ctx, []string{deviceID}, window)
	if err != nil {
		t.Fatalf("query readings: %v", err)
	}
	queryElapsed := time.Since(queryStart)
	if len(rows) != 1440 {
		t.Fatalf("expected 1440 rows for one day, got %d", len(rows))
	}
	if len(rows[0].Values) != 3 {
		t.Fatalf("expected 3 columns per row, got %d", len(rows[0].Values))
	}

	t.Logf("perf insert 7d rows=%d elapsed=%s", 7*1440*3, insertElapsed)
	t.Logf("perf query 1d rows=%d elapsed=%s", len(rows), queryElapsed)
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`SELECT to_regclass($1) IS NOT NULL`, "public."+name).Scan(&exists)
	return err == nil && exists
}
