package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ObserveIngest(2, 10, 1)
	m.ObserveQuery(OutcomeAnswered, 150*time.Millisecond, 4)
	m.ObserveQuery(OutcomeInvalid, time.Millisecond, 0)
	m.SetEntries(10)

	if got := testutil.ToFloat64(m.ingestedChunks); got != 10 {
		t.Errorf("ingested chunks = %v", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues(OutcomeAnswered)); got != 1 {
		t.Errorf("answered queries = %v", got)
	}
	if got := testutil.ToFloat64(m.entries); got != 10 {
		t.Errorf("entries gauge = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "kotae_queries_total") {
		t.Error("exposition should contain kotae_queries_total")
	}
}

func TestMetrics_nil(t *testing.T) {
	var m *Metrics
	m.ObserveIngest(1, 1, 1)
	m.ObserveQuery(OutcomeError, time.Second, 0)
	m.SetEntries(3)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil metrics handler code = %d", rec.Code)
	}
}
