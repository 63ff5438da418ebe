package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	masterdata "metering-dashboard/internal/masterdata/domain"
)

const defaultMetersTable = "meters"

// MeterDirectory is a Postgres implementation of the meter directory.
type MeterDirectory struct {
	db    DBTX
	table string
}

// NewMeterDirectory constructs a directory.
func NewMeterDirectory(db DBTX, opts ...MeterDirectoryOption) *MeterDirectory {
	repo := &MeterDirectory{db: db, table: defaultMetersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MeterDirectoryOption configures the directory.
type MeterDirectoryOption func(*MeterDirectory)

// WithMetersTable overrides the default table name.
func WithMetersTable(table string) MeterDirectoryOption {
	return func(repo *MeterDirectory) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListMeters loads every active meter. location_path is stored as
// "Site/Building/Floor".
func (r *MeterDirectory) ListMeters(ctx context.Context) ([]masterdata.MeterDirectoryEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter directory: nil db")
	}

	query := fmt.Sprintf(`
SELECT ref, slave_id, name, COALESCE(location_path, ''), COALESCE(group_id, '')
FROM %s
WHERE deleted_at IS NULL
ORDER BY ref ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.MeterDirectoryEntry
	for rows.Next() {
		var (
			entry    masterdata.MeterDirectoryEntry
			location string
		)
		if err := rows.Scan(&entry.Ref, &entry.DeviceID, &entry.Name, &location, &entry.GroupID); err != nil {
			return nil, err
		}
		entry.LocationPath = splitLocation(location)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func splitLocation(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
