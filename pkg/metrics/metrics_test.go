package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Observe("add", time.Now(), nil)
	m.Observe("add", time.Now(), nil)
	m.Observe("add", time.Now(), errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("add", "error")))

	m.Cloned(3)
	m.Renumbered(2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NodesCloned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TemplatesRenumbered))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("add", time.Now(), nil)
		m.Cloned(1)
		m.Renumbered(1)
	})
}
