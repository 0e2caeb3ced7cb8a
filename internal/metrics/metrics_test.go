package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveRefresh(TriggerReactive, true, 20*time.Millisecond)
	m.ObserveRefresh(TriggerReactive, false, 10*time.Millisecond)
	m.ObserveRefresh(TriggerProactive, true, time.Millisecond)
	m.RequestParked()
	m.RequestParked()
	m.ObserveReplay(true)
	m.SessionLost("InvalidSessionError")
	m.ObserveStatus(200)
	m.ObserveStatus(401)
	m.ObserveStatus(0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(TriggerReactive, OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(TriggerReactive, OutcomeFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(TriggerProactive, OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ParkedRequests))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Replays.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionLosses.WithLabelValues("InvalidSessionError")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("2xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("4xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("none")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveRefresh(TriggerManual, true, time.Second)
		m.RequestParked()
		m.ObserveReplay(false)
		m.SessionLost("x")
		m.ObserveStatus(500)
	})
}

func TestHandlerFor_ServesCollectors(t *testing.T) {
	reg, m := NewRegistry()
	m.RequestParked()

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "sessionkeeper_parked_requests_total 1"))
}
