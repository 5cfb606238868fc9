package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("stock:alert").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("stock:alert").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:alert", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:alert", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("stock:alert")))
}

func TestEnqueuedAndNilSafety(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Enqueued("audit:archive", nil)
	m.Enqueued("audit:archive", errors.New("redis down"))
	require.Equal(t, 1.0, testutil.ToFloat64(m.enqueued.WithLabelValues("audit:archive", "error")))

	var nilMetrics *Metrics
	nilMetrics.Enqueued("audit:archive", nil)
	require.NoError(t, nilMetrics.Track("audit:archive").End(nil))
}
