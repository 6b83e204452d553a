package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RecordDispatch("sent", time.Second)
	m.RecordDispatch("queued", 2*time.Second)
	m.RecordDispatch("queued", 3*time.Second)
	m.RecordFallback("notification", nil)
	m.RecordFallback("sms", errors.New("boom"))
	m.SetQueueSize(3)
	m.RecordDrain(2, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackTotal.WithLabelValues("sms", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDrained.WithLabelValues("delivered")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDispatch("sent", time.Second)
		m.RecordLocation("cached")
		m.SetQueueSize(1)
		m.RecordHTTPRequest("GET", "/x", 200, time.Millisecond)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RecordAlertReceived("medical", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sos_alerts_received_total{duplicate="false",emergency_type="medical"} 1`)
}
