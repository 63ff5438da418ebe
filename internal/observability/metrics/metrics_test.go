package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	return 0
}

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	if runsTotal != nil {
		t.Skip("metrics already registered")
	}
	ObserveRun("succeeded", time.Second)
	AddDeliveries("email", 1, 1)
	SetDueSchedules(3)
}

func TestCountersAfterInit(t *testing.T) {
	Init(nil, nil)

	before := value(t, deliveriesTotal.WithLabelValues("email", ResultSuccess))
	AddDeliveries("email", 3, 0)
	assert.Equal(t, before+3, value(t, deliveriesTotal.WithLabelValues("email", ResultSuccess)))

	SetDueSchedules(4)
	assert.Equal(t, 4.0, value(t, dueSchedules))

	IncInFlight()
	IncInFlight()
	DecInFlight()
	assert.Equal(t, 1.0, value(t, inFlightExecutions))
	DecInFlight()
}
