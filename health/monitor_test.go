package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("router", "consuming")

	status, ok := m.Get("router")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "router", status.Component)
	assert.False(t, status.Timestamp.IsZero())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMonitor_AggregateHealth(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("router", "ok")
	m.UpdateHealthy("ingest", "ok")
	assert.True(t, m.AggregateHealth("photoflow").IsHealthy())

	m.UpdateUnhealthy("ingest", "stream gone")
	agg := m.AggregateHealth("photoflow")
	assert.True(t, agg.IsUnhealthy())
	assert.Len(t, agg.SubStatuses, 2)
}

func TestMonitor_Remove(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("router", "ok")
	assert.Equal(t, 1, m.Count())

	m.Remove("router")
	assert.Equal(t, 0, m.Count())
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("router", "ok")

	rec := httptest.NewRecorder()
	m.Handler("photoflow").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "photoflow", status.Component)
	assert.True(t, status.Healthy)

	m.UpdateUnhealthy("ingest", "stream gone")
	rec = httptest.NewRecorder()
	m.Handler("photoflow").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
