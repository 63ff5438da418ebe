package billing

import (
	telemetry "metering-dashboard/internal/telemetry/domain"
)

// UsageFromReadings derives billing usage from one meter's rows, ordered by
// timestamp. Energy deltas come from the cumulative on/off-peak registers
// (last minus first); a register reset yields zero rather than a negative delta.
func UsageFromReadings(meterRef string, rows []telemetry.ReadingRow) Usage {
	usage := Usage{MeterRef: meterRef}
	var (
		pfSum    float64
		pfCount  int
		onFirst  *float64
		onLast   float64
		offFirst *float64
		offLast  float64
	)
	for _, row := range rows {
		if v, ok := row.Value(telemetry.ColumnDemandW); ok && v > usage.MaxDemandW {
			usage.MaxDemandW = v
		}
		if v, ok := row.Value(telemetry.ColumnDemandVAR); ok && v > usage.MaxDemandVAR {
			usage.MaxDemandVAR = v
		}
		if v, ok := row.Value(telemetry.ColumnDemandVA); ok && v > usage.MaxDemandVA {
			usage.MaxDemandVA = v
		}
		if v, ok := row.Value(telemetry.ColumnPFTotal); ok {
			pfSum += v
			pfCount++
		}
		if v, ok := row.Value(telemetry.ColumnKWhOnPeak); ok {
			if onFirst == nil {
				first := v
				onFirst = &first
			}
			onLast = v
		}
		if v, ok := row.Value(telemetry.ColumnKWhOffPeak); ok {
			if offFirst == nil {
				first := v
				offFirst = &first
			}
			offLast = v
		}
	}
	if pfCount > 0 {
		usage.AvgPowerFactor = pfSum / float64(pfCount)
	}
	if onFirst != nil && onLast > *onFirst {
		usage.OnPeakKWh = onLast - *onFirst
	}
	if offFirst != nil && offLast > *offFirst {
		usage.OffPeakKWh = offLast - *offFirst
	}
	return usage
}
