package metrics

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("appointment-service", reg)

	m.ObserveHTTPRequest("POST", "/api/v1/appointments", 201, 30*time.Millisecond)
	m.ObserveBooking("created")
	m.ObserveBooking("slot_unavailable")
	m.ObserveBooking("slot_unavailable")
	m.ObserveNotification("reminder", nil)
	m.ObserveNotification("reminder", errors.New("smtp down"))
	m.ObserveJobRun("no_show_sweep", 3, 1, time.Second, nil)
	m.ObserveJobSkipped("no_show_sweep")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/v1/appointments", "201")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("reminder", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.jobItemsTotal.WithLabelValues("no_show_sweep", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRunsTotal.WithLabelValues("no_show_sweep", "skipped")))
}

func TestMetrics_DBCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("appointment-service", reg)

	m.ObserveDBQuery("appointment-service", "select", time.Millisecond, nil)
	m.ObserveDBQuery("appointment-service", "select", time.Millisecond, sql.ErrNoRows)
	m.ObserveDBQuery("appointment-service", "insert", time.Millisecond, errors.New("boom"))
	m.SetDBPoolStats("appointment-service", sql.DBStats{OpenConnections: 5, InUse: 2, Idle: 3})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dbQueriesTotal.WithLabelValues("select", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbQueriesTotal.WithLabelValues("insert", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.dbOpenConns.WithLabelValues("appointment-service")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dbInUseConns.WithLabelValues("appointment-service")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
		m.ObserveDBQuery("db", "select", time.Millisecond, nil)
		m.SetDBPoolStats("db", sql.DBStats{})
		m.ObserveBooking("created")
		m.ObserveNotification("reminder", nil)
		m.ObserveJobRun("job", 0, 0, 0, nil)
		m.ObserveJobSkipped("job")
	})
}
