package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Counts(t *testing.T) {
	r := NewPrometheusRecorder()

	r.ObserveMessage("scripted", "advanced")
	r.ObserveMessage("scripted", "advanced")
	r.ObserveQualification("HOT", "rubric")
	r.ObserveOracle("openai", "score", false, 250*time.Millisecond)
	r.ObserveNotification("sms", true)
	r.IncConflict()

	require.Equal(t, 2.0, testutil.ToFloat64(r.messagesTotal.WithLabelValues("scripted", "advanced")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.qualificationsTotal.WithLabelValues("HOT", "rubric")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.oracleTotal.WithLabelValues("openai", "score", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.notificationsTotal.WithLabelValues("sms", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.conflictsTotal))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	r := NewPrometheusRecorder()
	r.ObserveMessage("conversational", "opt_out")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, string(body), `siftly_messages_total{mode="conversational",outcome="opt_out"} 1`)
}

func TestRecordersAreIndependent(t *testing.T) {
	a := NewPrometheusRecorder()
	b := NewPrometheusRecorder()
	a.IncConflict()
	require.Equal(t, 0.0, testutil.ToFloat64(b.conflictsTotal))
}

func TestOrNop(t *testing.T) {
	require.IsType(t, &NoopRecorder{}, OrNop(nil))
	r := NewPrometheusRecorder()
	require.Same(t, r, OrNop(r))
}
