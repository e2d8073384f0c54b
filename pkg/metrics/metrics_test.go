package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRender(time.Millisecond, "panic")
		m.RecordDirtySignal()
		m.RecordChangeSet(map[string]int{"Add": 1})
		m.RecordCommand("generate", "Completed", time.Second)
		m.RecordSessionOpen()
		m.RecordSessionClose()
		m.RecordDispatchPanic()
		m.RecordDispatchDrop()
	})
	assert.Nil(t, m.Registry())
}

func TestRecorders(t *testing.T) {
	m := New(WithNamespace("test"))

	m.RecordRender(time.Millisecond, "")
	m.RecordRender(time.Millisecond, "error")
	m.RecordDirtySignal()
	m.RecordDirtySignal()
	m.RecordChangeSet(map[string]int{"Clear": 1, "Add": 20})
	m.RecordCommand("generate", "Canceled", 10*time.Millisecond)
	m.RecordSessionOpen()
	m.RecordSessionOpen()
	m.RecordSessionClose()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.renders))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderErrors.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dirtySignals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changeSets))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.changes.WithLabelValues("Add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandResults.WithLabelValues("generate", "Canceled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.liveSessions))
}

func TestSeparateRegistries(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(WithRegistry(reg))
	b := New()

	assert.Same(t, reg, a.Registry())
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(WithNamespace("rx"))
	m.RecordDirtySignal()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rx_dirty_signals_total 1")
}
