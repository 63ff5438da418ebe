package application

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

const defaultFetchConcurrency = 4

// Fetcher loads readings per device and down-samples them.
type Fetcher struct {
	store       telemetry.Store
	concurrency int
	logger      *zap.Logger
}

// FetcherOption configures the fetcher.
type FetcherOption func(*Fetcher)

// WithConcurrency bounds the number of device queries in flight.
func WithConcurrency(limit int) FetcherOption {
	return func(f *Fetcher) {
		if limit > 0 {
			f.concurrency = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher constructs a fetcher.
func NewFetcher(store telemetry.Store, opts ...FetcherOption) (*Fetcher, error) {
	if store == nil {
		return nil, errors.New("telemetry fetcher: nil store")
	}
	f := &Fetcher{
		store:       store,
		concurrency: defaultFetchConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FetchResult holds the concatenated rows and the per-device faults. Raw
// carries the same devices' window rows before resampling.
type FetchResult struct {
	Rows   []telemetry.ReadingRow
	Raw    []telemetry.ReadingRow
	Faults []*telemetry.FetchError
}

// Fetch queries every device independently, resamples each series to
// intervalMinutes and concatenates them in the order deviceIDs were given.
// A failing device is reported in Faults and does not abort the others.
func (f *Fetcher) Fetch(ctx context.Context, deviceIDs []string, window telemetry.Window, intervalMinutes int) (FetchResult, error) {
	if err := window.Validate(); err != nil {
		return FetchResult{}, err
	}
	if intervalMinutes <= 0 {
		return FetchResult{}, errors.New("telemetry fetcher: interval must be positive")
	}

	perDevice := make([][]telemetry.ReadingRow, len(deviceIDs))
	raw := make([][]telemetry.ReadingRow, len(deviceIDs))
	faults := make([]*telemetry.FetchError, len(deviceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, deviceID := range deviceIDs {
		g.Go(func() error {
			rows, err := f.store.Query(gctx, []string{deviceID}, window)
			if err != nil {
				faults[i] = &telemetry.FetchError{DeviceID: deviceID, Err: err}
				f.logger.Warn("device fetch failed", zap.String("device_id", deviceID), zap.Error(err))
				return nil
			}
			raw[i] = ownRows(rows, deviceID, window)
			perDevice[i] = Resample(raw[i], intervalMinutes)
			return nil
		})
	}
	_ = g.Wait()

	var result FetchResult
	for i := range deviceIDs {
		if faults[i] != nil {
			result.Faults = append(result.Faults, faults[i])
			continue
		}
		result.Rows = append(result.Rows, perDevice[i]...)
		result.Raw = append(result.Raw, raw[i]...)
	}
	return result, nil
}

// ownRows keeps the rows of one device inside the window, ascending by time.
func ownRows(rows []telemetry.ReadingRow, deviceID string, window telemetry.Window) []telemetry.ReadingRow {
	out := make([]telemetry.ReadingRow, 0, len(rows))
	for _, row := range rows {
		if row.DeviceID != deviceID || !window.Contains(row.Timestamp) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Resample keeps a row iff its timestamp minute is a multiple of
// intervalMinutes. Readings that are not minute-aligned to a boundary are
// dropped as-is; the predicate looks at the minute field only. Order is
// preserved and the filter is idempotent.
func Resample(rows []telemetry.ReadingRow, intervalMinutes int) []telemetry.ReadingRow {
	if intervalMinutes <= 1 {
		return rows
	}
	out := make([]telemetry.ReadingRow, 0, len(rows)/intervalMinutes+1)
	for _, row := range rows {
		if row.Timestamp.Minute()%intervalMinutes == 0 {
			out = append(out, row)
		}
	}
	return out
}
