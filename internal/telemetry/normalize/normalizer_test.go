package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

func TestResolveTiers(t *testing.T) {
	labels := []telemetry.Column{telemetry.ColumnVoltAN, telemetry.ColumnDemandW, telemetry.ColumnKWhOnPeak}

	m := Resolve(labels, "Demand W")
	assert.Equal(t, TierExact, m.Tier)
	assert.Equal(t, telemetry.ColumnDemandW, m.Column)

	m = Resolve(labels, "demand w")
	assert.Equal(t, TierCaseInsensitive, m.Tier)

	m = Resolve(labels, "volt_an")
	assert.Equal(t, TierSeparatorInsensitive, m.Tier)
	assert.Equal(t, telemetry.ColumnVoltAN, m.Column)

	m = Resolve(labels, "  kWh__On   peak ")
	assert.Equal(t, telemetry.ColumnKWhOnPeak, m.Column)

	m = Resolve(labels, "harmonics")
	assert.False(t, m.Matched())
	assert.Equal(t, telemetry.Unmatched, m.Column)
}

func TestResolvePrefersEarlierTierOverEarlierLabel(t *testing.T) {
	labels := []telemetry.Column{"volt an", "Volt_AN"}
	m := Resolve(labels, "Volt_AN")
	assert.Equal(t, TierExact, m.Tier)
	assert.Equal(t, telemetry.Column("Volt_AN"), m.Column)
}

func TestResolveAllKeepsUnmatched(t *testing.T) {
	matches := ResolveAll(telemetry.KnownColumns(), []string{"pf_total", "unknown", "FREQUENCY"})
	assert.Len(t, matches, 3)
	assert.Equal(t, telemetry.ColumnPFTotal, matches[0].Column)
	assert.False(t, matches[1].Matched())
	assert.Equal(t, "unknown", matches[1].Parameter)
	assert.Equal(t, telemetry.ColumnFrequency, matches[2].Column)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "volt_an", Canonical("Volt AN"))
	assert.Equal(t, "volt_an", Canonical("volt_an"))
	assert.Equal(t, "kwh_on_peak", Canonical(" kWh \t_On  Peak "))
	assert.Equal(t, "", Canonical("  __ "))
}
