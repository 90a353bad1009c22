package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveIngest("indexed")
	m.ObserveIngest("indexed")
	m.ObserveIngest("pending_index")
	m.ObserveStage("extract", time.Now())
	m.ObserveQuery("ok")
	m.ObservePassages(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingests.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "collabrag_ingest_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest("indexed")
		m.ObserveStage("chunk", time.Now())
		m.ObserveQuery("ok")
		m.ObservePassages(1)
		m.ObserveReindex("ok")
		m.ObserveScopeDeletion(true)
	})
}
