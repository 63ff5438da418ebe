package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	telemetry "metering-dashboard/internal/telemetry/domain"
	telemetrymemory "metering-dashboard/internal/telemetry/infrastructure/memory"
)

func TestIngestStoresPoints(t *testing.T) {
	store := telemetrymemory.NewStore()
	handler, err := NewHandler(store, nil)
	require.NoError(t, err)

	body := `{"deviceId":"11","points":[
		{"ts":1773129600000,"values":{"Demand W":120.5,"PF Total":0.93}},
		{"ts":1773129660,"values":{"Demand W":121}}
	]}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"inserted":2}`, resp.Body.String())

	start := time.UnixMilli(1773129600000).UTC()
	rows, err := store.Query(context.Background(), []string{"11"}, telemetry.Window{Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	value, ok := rows[0].Value(telemetry.ColumnPFTotal)
	assert.True(t, ok)
	assert.InDelta(t, 0.93, value, 1e-9)
}

func TestIngestRejectsBadPayloads(t *testing.T) {
	handler, err := NewHandler(telemetrymemory.NewStore(), nil)
	require.NoError(t, err)

	cases := map[string]string{
		"missing device": `{"ts":1773129600,"values":{"Demand W":1}}`,
		"unknown column": `{"deviceId":"11","ts":1773129600,"values":{"Bogus":1}}`,
		"no points":      `{"deviceId":"11"}`,
		"bad json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ingest/readings", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}
