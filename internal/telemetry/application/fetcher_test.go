package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

type stubStore struct {
	rows    map[string][]telemetry.ReadingRow
	failFor map[string]error
}

func (s *stubStore) Query(ctx context.Context, deviceIDs []string, window telemetry.Window) ([]telemetry.ReadingRow, error) {
	var out []telemetry.ReadingRow
	for _, id := range deviceIDs {
		if err := s.failFor[id]; err != nil {
			return nil, err
		}
		out = append(out, s.rows[id]...)
	}
	return out, nil
}

func minuteRows(deviceID string, start time.Time, minutes int) []telemetry.ReadingRow {
	rows := make([]telemetry.ReadingRow, 0, minutes)
	for i := 0; i < minutes; i++ {
		rows = append(rows, telemetry.ReadingRow{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			DeviceID:  deviceID,
			Values:    map[telemetry.Column]float64{telemetry.ColumnDemandW: float64(i)},
		})
	}
	return rows
}

func TestResampleIdempotentAndIdentity(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := minuteRows("1", start, 120)

	assert.Equal(t, rows, Resample(rows, 1))
	for _, k := range []int{2, 5, 15, 60} {
		once := Resample(rows, k)
		assert.Equal(t, once, Resample(once, k), "k=%d", k)
		for _, row := range once {
			assert.Zero(t, row.Timestamp.Minute()%k)
		}
	}
	assert.Len(t, Resample(rows, 15), 8)
}

func TestResampleDropsUnalignedReadings(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []telemetry.ReadingRow{
		{Timestamp: start, DeviceID: "1"},
		{Timestamp: start.Add(14*time.Minute + 50*time.Second), DeviceID: "1"},
		{Timestamp: start.Add(15*time.Minute + 10*time.Second), DeviceID: "1"},
	}
	got := Resample(rows, 15)
	require.Len(t, got, 2)
	assert.Equal(t, 15, got[1].Timestamp.Minute())
}

func TestFetchIsolatesDeviceFaults(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := telemetry.Window{Start: start, End: start.Add(time.Hour - time.Nanosecond)}
	store := &stubStore{
		rows: map[string][]telemetry.ReadingRow{
			"1": minuteRows("1", start, 60),
			"3": minuteRows("3", start, 60),
		},
		failFor: map[string]error{"2": errors.New("timeout")},
	}
	fetcher, err := NewFetcher(store, WithConcurrency(2))
	require.NoError(t, err)

	result, err := fetcher.Fetch(context.Background(), []string{"3", "2", "1"}, window, 15)
	require.NoError(t, err)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, "2", result.Faults[0].DeviceID)
	assert.EqualError(t, errors.Unwrap(result.Faults[0]), "timeout")

	require.Len(t, result.Rows, 8)
	assert.Equal(t, "3", result.Rows[0].DeviceID)
	assert.Equal(t, "1", result.Rows[4].DeviceID)
	assert.True(t, result.Rows[0].Timestamp.Before(result.Rows[1].Timestamp))

	// raw rows skip the faulted device but keep every minute
	require.Len(t, result.Raw, 120)
	assert.Equal(t, "3", result.Raw[0].DeviceID)
	assert.Equal(t, "1", result.Raw[60].DeviceID)
	assert.Equal(t, 59, result.Raw[119].Timestamp.Minute())
}

func TestFetchKeepsFinalMinuteOfWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	rows := minuteRows("1", start, 31)
	rows = append(rows, telemetry.ReadingRow{Timestamp: start.Add(30*time.Minute + 30*time.Second), DeviceID: "1"})
	store := &stubStore{rows: map[string][]telemetry.ReadingRow{"1": rows}}
	fetcher, err := NewFetcher(store)
	require.NoError(t, err)

	window, err := telemetry.NewWindow(start, telemetry.ClockTime{Hour: 17}, start, telemetry.ClockTime{Hour: 17, Minute: 30}, time.UTC)
	require.NoError(t, err)
	result, err := fetcher.Fetch(context.Background(), []string{"1"}, window, 1)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 32)
	assert.Equal(t, 30, result.Rows[len(result.Rows)-1].Timestamp.Second())
}

func TestFetchRejectsBadInput(t *testing.T) {
	_, err := NewFetcher(nil)
	require.Error(t, err)

	fetcher, err := NewFetcher(&stubStore{})
	require.NoError(t, err)
	_, err = fetcher.Fetch(context.Background(), []string{"1"}, telemetry.Window{}, 15)
	require.True(t, errors.Is(err, telemetry.ErrInvalidWindow))
}
