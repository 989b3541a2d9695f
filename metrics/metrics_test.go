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

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordValidation(OutcomeWon)
	m.RecordValidation(OutcomeWon)
	m.RecordValidation(OutcomeRejected)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues(OutcomeWon)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues(OutcomeRejected)))

	m.RecordPurchase("d-1", 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ticketsSold.WithLabelValues("d-1")))

	m.RecordAuditEvent("scratch.audit", nil)
	m.RecordAuditEvent("scratch.audit", errors.New("broker down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditEvents.WithLabelValues("scratch.audit", "error")))
}

func TestMetrics_IntactGaugeIsReplaced(t *testing.T) {
	m := New()

	m.SetIntact(map[string]int{"d-1": 10, "d-2": 4})
	m.SetIntact(map[string]int{"d-1": 9})

	assert.Equal(t, 9.0, testutil.ToFloat64(m.intactTickets.WithLabelValues("d-1")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.intactTickets))
}

func TestMetrics_InFlightAndListeners(t *testing.T) {
	m := New()

	done := m.InFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))

	leave := m.FeedListenerConnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedListeners))
	leave()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.feedListeners))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/validate-game", "200", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rubits_http_requests_total{method="POST",route="/validate-game",status="200"} 1`)
}
